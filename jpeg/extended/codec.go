// Package extended decodes JPEG Extended (Process 2 & 4) frames, including
// 12-bit sequential DCT streams.
package extended

import (
	"fmt"
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

// Codec implements go-dicom's codec.Codec for JPEG Extended.
// Encoding is not supported.
type Codec struct{}

// NewCodec creates a new JPEG Extended decoder
func NewCodec() *Codec { return &Codec{} }

// Name returns the codec name
func (c *Codec) Name() string { return "JPEG Extended" }

// TransferSyntax returns the transfer syntax this codec handles
func (c *Codec) TransferSyntax() *transfer.Syntax { return transfer.JPEGExtended12Bit }

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

// DecodedPhotometric reports RGB for 8-bit color frames, which the standard
// library decoder converts from YCbCr. 12-bit frames keep their components.
func (c *Codec) DecodedPhotometric(info *imagetypes.FrameInfo) string {
	if info.SamplesPerPixel == 3 && info.BitsStored <= 8 {
		return "RGB"
	}
	return strings.ToUpper(strings.TrimSpace(info.PhotometricInterpretation))
}

func decodeFrame(src []byte, info *imagetypes.FrameInfo) ([]byte, error) {
	res, err := Decode(src)
	if err != nil {
		return nil, fmt.Errorf("JPEG Extended decode failed: %w", err)
	}
	if err := codec.CheckDimensions(info, res.Width, res.Height, res.Components); err != nil {
		return nil, err
	}
	width := 2
	if res.Precision == 8 {
		width = 1
	}
	return codec.Allocate(res.PixelData, width, info)
}

func init() {
	codec.Register(NewCodec())
}
