package archive

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 80

// prepareImage checks that data is a decodable image and names it after
// id. With maxWidth > 0 wider images are scaled down and re-encoded as JPEG.
func prepareImage(id string, data []byte, maxWidth int) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("unrecognized image: %w", err)
	}

	if maxWidth > 0 && cfg.Width > maxWidth {
		data, err = downscale(data, maxWidth)
		if err != nil {
			return Image{}, err
		}
		format = "jpeg"
	}

	ext := format
	if format == "jpeg" {
		ext = "jpg"
	}
	return Image{
		Name:      id + "." + ext,
		MediaType: "image/" + format,
		Data:      data,
	}, nil
}

func downscale(data []byte, maxWidth int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newH := h * maxWidth / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
