package avatar

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"

	"chat/infrastructure"
)

const (
	DefaultMaxDimension = 200
	DefaultMaxKB        = 50

	// MaxSourcePixels bounds the decoded source image. The header is checked
	// before any pixel data is allocated.
	MaxSourcePixels = 4096 * 4096

	startQuality = 70
	minQuality   = 10
	qualityStep  = 10

	// base64 inflates the payload by about a third; the budget is checked
	// against the encoded data URL.
	base64Factor = 1.37

	dataURLPrefix = "data:image/jpeg;base64,"
)

type Compressor struct {
	MaxDimension uint
	MaxKB        int
}

func NewCompressor() *Compressor {
	return &Compressor{MaxDimension: DefaultMaxDimension, MaxKB: DefaultMaxKB}
}

func (c *Compressor) budget() int {
	return int(float64(c.MaxKB*1024) * base64Factor)
}

// Compress decodes r, caps its long edge at MaxDimension and re-encodes it
// as a JPEG data URL, lowering quality until the result fits the budget.
func (c *Compressor) Compress(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", infrastructure.Validation("unreadable image: %v", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", infrastructure.Validation("unreadable image: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", infrastructure.Validation("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return "", infrastructure.Size("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, MaxSourcePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", infrastructure.Validation("unreadable image: %v", err)
	}

	img = c.fit(img)

	var url string
	for quality := startQuality; quality >= minQuality; quality -= qualityStep {
		url, err = encode(img, quality)
		if err != nil {
			return "", fmt.Errorf("failed to encode avatar: %w", err)
		}
		if len(url) <= c.budget() {
			return url, nil
		}
	}

	return "", infrastructure.Size("avatar is %d KB after compression, limit is %d KB", len(url)/1024, c.MaxKB)
}

func (c *Compressor) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := uint(b.Dx()), uint(b.Dy())
	if w <= c.MaxDimension && h <= c.MaxDimension {
		return img
	}
	if w >= h {
		return resize.Resize(c.MaxDimension, 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, c.MaxDimension, img, resize.Lanczos3)
}

func encode(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
