package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	igerrors "igepub/pkg/errors"
	"igepub/pkg/logger"
	"igepub/pkg/ratelimit"
)

// DefaultUserAgent is sent when neither the session nor the config set one
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// maxBodyPreview bounds the response text copied into parse error logs
const maxBodyPreview = 200

// Client represents an Instagram API client
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new Instagram API client. Every API request waits on
// limiter first; a nil limiter disables pacing.
func NewClient(timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(0, 1)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":       DefaultUserAgent,
			"Accept":           "*/*",
			"Accept-Language":  "en-US,en;q=0.9",
			"X-IG-App-ID":      AppID,
			"X-Requested-With": "XMLHttpRequest",
		},
		baseURL: BaseURL,
		limiter: limiter,
		logger:  log,
	}
}

// SetBaseURL points the client at another host
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// doRequest waits for the limiter, applies the configured headers and
// performs the request
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, igerrors.Wrap(igerrors.ErrorTypeNetwork, err, req.Method+" "+req.URL.Redacted())
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeUnknown, err, "failed to create request")
	}
	return c.doJSON(req, target)
}

// PostFormJSON performs a form POST and decodes the JSON response
func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doJSON(req, target)
}

func (c *Client) doJSON(req *http.Request, target interface{}) error {
	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &igerrors.Error{
			Type:    igerrors.ErrorTypeNetwork,
			Message: "failed to read response body",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > maxBodyPreview {
			bodyPreview = bodyPreview[:maxBodyPreview] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &igerrors.Error{
			Type:    igerrors.ErrorTypeParsing,
			Message: "failed to parse JSON",
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// checkResponseStatus maps a non-2xx response to a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := igerrors.FromStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	var message string
	switch errType {
	case igerrors.ErrorTypeSession:
		message = "session rejected"
		c.logger.WarnWithFields("authentication error", fields)
	case igerrors.ErrorTypeNotFound:
		message = "resource not found"
		c.logger.WarnWithFields("resource not found", fields)
	case igerrors.ErrorTypeRateLimit:
		message = "rate limit exceeded"
		if after := resp.Header.Get("Retry-After"); after != "" {
			message += ", retry after " + after + "s"
		}
		c.logger.WarnWithFields("rate limit exceeded", fields)
	case igerrors.ErrorTypeServerError:
		message = "server error"
		c.logger.ErrorWithFields("server error", fields)
	default:
		message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		c.logger.ErrorWithFields("unexpected API error", fields)
	}

	return &igerrors.Error{Type: errType, Message: message, Code: resp.StatusCode}
}

// FetchUserProfile fetches a profile together with its first timeline page
func (c *Client) FetchUserProfile(ctx context.Context, username string) (*ProfileResponse, error) {
	endpoint := ProfileURL(c.baseURL, username)

	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
	})

	var response ProfileResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for profile", map[string]interface{}{
			"username": username,
		})
		return nil, &igerrors.Error{
			Type:    igerrors.ErrorTypeSession,
			Message: "Instagram requires authentication to view this profile",
			Code:    http.StatusUnauthorized,
		}
	}
	if response.Data.User == nil {
		return nil, igerrors.New(igerrors.ErrorTypeNotFound, fmt.Sprintf("profile %q not found", username))
	}

	return &response, nil
}

// FetchUserMedia fetches the timeline page after the given cursor
func (c *Client) FetchUserMedia(ctx context.Context, userID, after string) (*ProfileResponse, error) {
	c.logger.DebugWithFields("fetching user media", map[string]interface{}{
		"user_id": userID,
		"after":   after,
	})

	var response ProfileResponse
	if err := c.GetJSON(ctx, MediaURL(c.baseURL, userID, after), &response); err != nil {
		return nil, err
	}
	if response.Data.User == nil {
		return nil, igerrors.New(igerrors.ErrorTypeParsing, "timeline page has no user")
	}
	return &response, nil
}

// FetchHashtag fetches the first page of a tag's recent media
func (c *Client) FetchHashtag(ctx context.Context, tag string) (*HashtagSections, error) {
	c.logger.DebugWithFields("fetching hashtag", map[string]interface{}{
		"tag": tag,
	})

	var response HashtagResponse
	if err := c.GetJSON(ctx, HashtagURL(c.baseURL, tag), &response); err != nil {
		return nil, err
	}
	return &response.Data.Recent, nil
}

// FetchHashtagPage fetches a following page of a tag's recent media
func (c *Client) FetchHashtagPage(ctx context.Context, tag, maxID string, page int) (*HashtagSections, error) {
	c.logger.DebugWithFields("fetching hashtag page", map[string]interface{}{
		"tag":    tag,
		"max_id": maxID,
		"page":   page,
	})

	form := url.Values{}
	form.Set("tab", "recent")
	form.Set("max_id", maxID)
	form.Set("page", strconv.Itoa(page))

	var response HashtagSections
	if err := c.PostFormJSON(ctx, HashtagSectionsURL(c.baseURL, tag), form, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Download fetches a media file. Media hosts are not paced by the API limiter.
func (c *Client) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeAsset, err, "invalid media URL")
	}
	req.Header.Set("User-Agent", c.headers["User-Agent"])

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, igerrors.Wrap(igerrors.ErrorTypeNetwork, err, "download "+req.URL.Redacted())
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeNetwork, err, "failed to read media")
	}

	c.logger.DebugWithFields("downloaded media", map[string]interface{}{
		"url":  mediaURL,
		"size": len(data),
	})
	return data, nil
}
