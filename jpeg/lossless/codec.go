package lossless

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-dicom-cards/codec"
)

var _ gocodec.Codec = (*Codec)(nil)

// Codec implements go-dicom's codec.Codec for JPEG Lossless. Both transfer
// syntaxes share the decoder; the predictor is read from the SOS segment.
// Encoding is not supported.
type Codec struct {
	transferSyntax *transfer.Syntax
	name           string
}

// NewCodec creates a decoder for JPEG Lossless Process 14
func NewCodec() *Codec {
	return &Codec{transferSyntax: transfer.JPEGLossless, name: "JPEG Lossless"}
}

// NewSV1Codec creates a decoder for JPEG Lossless Process 14 SV1
func NewSV1Codec() *Codec {
	return &Codec{transferSyntax: transfer.JPEGLosslessSV1, name: "JPEG Lossless SV1"}
}

// Name returns the codec name
func (c *Codec) Name() string { return c.name }

// TransferSyntax returns the transfer syntax this codec handles
func (c *Codec) TransferSyntax() *transfer.Syntax { return c.transferSyntax }

// GetDefaultParameters returns the default codec parameters
func (c *Codec) GetDefaultParameters() gocodec.Parameters { return gocodec.NewBaseParameters() }

// Encode is not supported
func (c *Codec) Encode(oldPixelData, newPixelData imagetypes.PixelData, parameters gocodec.Parameters) error {
	return fmt.Errorf("%s: %w", c.name, codec.ErrEncodeUnsupported)
}

// Decode decodes every frame of oldPixelData into newPixelData
func (c *Codec) Decode(oldPixelData, newPixelData imagetypes.PixelData, parameters gocodec.Parameters) error {
	return codec.DecodeFrames(oldPixelData, newPixelData, decodeFrame)
}

func decodeFrame(src []byte, info *imagetypes.FrameInfo) ([]byte, error) {
	res, err := Decode(src)
	if err != nil {
		return nil, fmt.Errorf("JPEG Lossless decode failed: %w", err)
	}
	if err := codec.CheckDimensions(info, res.Width, res.Height, res.Components); err != nil {
		return nil, err
	}
	if stored := int(info.BitsStored); stored > 0 && (stored <= 8) != (res.Precision <= 8) {
		return nil, fmt.Errorf("%w: precision %d vs bits stored %d",
			codec.ErrInvalidParameter, res.Precision, stored)
	}

	width := 2
	if res.Precision <= 8 {
		width = 1
	}
	return codec.Allocate(res.PixelData, width, info)
}

func init() {
	codec.Register(NewCodec())
	codec.Register(NewSV1Codec())
}
