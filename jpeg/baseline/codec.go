// Package baseline decodes JPEG Baseline (Process 1) frames with the
// standard library JPEG decoder.
package baseline

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-dicom-cards/codec"
)

var (
	_ gocodec.Codec              = (*Codec)(nil)
	_ codec.PhotometricConverter = (*Codec)(nil)
)

// Codec implements go-dicom's codec.Codec for 8-bit baseline JPEG.
// Encoding is not supported.
type Codec struct{}

// NewCodec creates a new JPEG Baseline decoder
func NewCodec() *Codec { return &Codec{} }

// Name returns the codec name
func (c *Codec) Name() string { return "JPEG Baseline" }

// TransferSyntax returns the transfer syntax this codec handles
func (c *Codec) TransferSyntax() *transfer.Syntax { return transfer.JPEGBaseline8Bit }

// GetDefaultParameters returns the default codec parameters
func (c *Codec) GetDefaultParameters() gocodec.Parameters { return gocodec.NewBaseParameters() }

// Encode is not supported
func (c *Codec) Encode(oldPixelData, newPixelData imagetypes.PixelData, parameters gocodec.Parameters) error {
	return fmt.Errorf("%s: %w", c.Name(), codec.ErrEncodeUnsupported)
}

// Decode decodes every frame of oldPixelData into newPixelData
func (c *Codec) Decode(oldPixelData, newPixelData imagetypes.PixelData, parameters gocodec.Parameters) error {
	return codec.DecodeFrames(oldPixelData, newPixelData, decodeFrame)
}

// DecodedPhotometric reports RGB for color frames because the JPEG decoder
// performs the YCbCr conversion.
func (c *Codec) DecodedPhotometric(info *imagetypes.FrameInfo) string {
	return Photometric(info)
}

// Photometric returns the color space of frames decoded by DecodeImage
func Photometric(info *imagetypes.FrameInfo) string {
	if info.SamplesPerPixel == 3 {
		return "RGB"
	}
	return strings.ToUpper(strings.TrimSpace(info.PhotometricInterpretation))
}

func decodeFrame(src []byte, info *imagetypes.FrameInfo) ([]byte, error) {
	pixels, w, h, components, err := DecodeImage(src)
	if err != nil {
		return nil, err
	}
	if err := codec.CheckDimensions(info, w, h, components); err != nil {
		return nil, err
	}
	return codec.Allocate(pixels, 1, info)
}

// DecodeImage decodes an 8-bit JPEG stream to interleaved samples: one per
// pixel for grayscale, RGB triples otherwise.
func DecodeImage(src []byte) (pixels []byte, width, height, components int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("JPEG decode failed: %w", err)
	}

	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	if g, ok := img.(*image.Gray); ok {
		pixels = make([]byte, width*height)
		for y := 0; y < height; y++ {
			copy(pixels[y*width:(y+1)*width], g.Pix[y*g.Stride:y*g.Stride+width])
		}
		return pixels, width, height, 1, nil
	}

	pixels = make([]byte, width*height*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pixels[i] = byte(r >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return pixels, width, height, 3, nil
}

func init() {
	codec.Register(NewCodec())
}
