package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"

	igerrors "igepub/pkg/errors"
)

// MaxImageBytes bounds a single downloaded image
const MaxImageBytes = 50 << 20

// HTTPSource downloads URLs read back from the posts document. The URLs are
// not trusted, so by default the client refuses private, loopback and
// link-local destinations.
type HTTPSource struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPSource creates a source. With safe set the client is built by
// safeurl and only http/https on ports 80 and 443 are allowed.
func NewHTTPSource(timeout time.Duration, safe bool, userAgent string) *HTTPSource {
	client := &http.Client{Timeout: timeout}
	if safe {
		cfg := safeurl.GetConfigBuilder().
			SetTimeout(timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		client = safeurl.Client(cfg).Client
	}
	return &HTTPSource{client: client, userAgent: userAgent, maxBytes: MaxImageBytes}
}

func (s *HTTPSource) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeAsset, err, "invalid URL")
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeNetwork, err, "GET "+req.URL.Redacted())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &igerrors.Error{
			Type:    igerrors.FromStatusCode(resp.StatusCode),
			Message: fmt.Sprintf("GET %s returned %d", req.URL.Redacted(), resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeNetwork, err, "read body")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, igerrors.New(igerrors.ErrorTypeAsset, fmt.Sprintf("image larger than %d bytes", s.maxBytes))
	}
	return data, nil
}
