package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	defaultImageSize     = 378
	defaultMaxImageBytes = 10 << 20
)

var ErrInvalidImageURL = errors.New("invalid image url")

// ImageProcessor turns an image reference into the JPEG bytes the model
// backend consumes, scaled to fit the vision encoder's input size.
type ImageProcessor struct {
	httpClient *http.Client
	size       int
	maxBytes   int64
}

func NewImageProcessor(size int, maxBytes int64, httpClient *http.Client) *ImageProcessor {
	if size <= 0 {
		size = defaultImageSize
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageProcessor{
		httpClient: httpClient,
		size:       size,
		maxBytes:   maxBytes,
	}
}

func (p *ImageProcessor) Process(ctx context.Context, ref string) ([]byte, error) {
	raw, err := p.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = p.resize(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *ImageProcessor) fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "data:") {
		return p.decodeDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImageURL, truncate(ref, 64))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxBytes)
	}
	return data, nil
}

func (p *ImageProcessor) decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", ErrInvalidImageURL)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data url is not base64", ErrInvalidImageURL)
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > p.maxBytes+2 {
		return nil, fmt.Errorf("image exceeds %d bytes", p.maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	return data, nil
}

func (p *ImageProcessor) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.size && h <= p.size {
		return img
	}

	nw, nh := p.size, p.size
	if w > h {
		nh = max(1, h*p.size/w)
	} else {
		nw = max(1, w*p.size/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
