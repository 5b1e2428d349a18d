// Package payload encodes grayscale images as embeddable PNG data URIs.
package payload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Prefix starts every payload
const Prefix = "data:image/png;base64,"

// MediaType is the MIME type of the embedded image
const MediaType = "image/png"

type options struct {
	maxEdge     int
	compression png.CompressionLevel
}

// Option configures Encode
type Option func(*options)

// WithMaxEdge downscales images whose longer side exceeds n pixels,
// keeping the aspect ratio. Zero disables scaling.
func WithMaxEdge(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEdge = n
		}
	}
}

// WithCompression sets the PNG compression level
func WithCompression(level png.CompressionLevel) Option {
	return func(o *options) {
		o.compression = level
	}
}

// ParseCompression maps a configuration name to a PNG compression level
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "size":
		return png.BestCompression, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

// Encode serializes img as "data:image/png;base64,<data>". The output is
// deterministic for a given image and options.
func Encode(img *image.Gray, opts ...Option) (string, error) {
	o := options{compression: png.DefaultCompression}
	for _, opt := range opts {
		opt(&o)
	}

	if img == nil || img.Bounds().Empty() {
		return "", &EncodeError{Err: ErrEmptyImage}
	}

	var src image.Image = img
	if o.maxEdge > 0 {
		src = scale(img, o.maxEdge)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: o.compression}
	if err := enc.Encode(&buf, src); err != nil {
		return "", &EncodeError{Err: err}
	}

	var sb strings.Builder
	sb.Grow(len(Prefix) + base64.StdEncoding.EncodedLen(buf.Len()))
	sb.WriteString(Prefix)
	sb.WriteString(base64.StdEncoding.EncodeToString(buf.Bytes()))
	return sb.String(), nil
}

func scale(img *image.Gray, maxEdge int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Bytes returns the PNG file embedded in a payload
func Bytes(src string) ([]byte, error) {
	data, ok := strings.CutPrefix(src, Prefix)
	if !ok {
		return nil, ErrNotPayload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return raw, nil
}

// Decode parses a payload produced by Encode
func Decode(src string) (image.Image, error) {
	raw, err := Bytes(src)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}
