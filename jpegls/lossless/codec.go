package lossless

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-dicom-cards/codec"
)

var _ gocodec.Codec = (*Codec)(nil)

// Codec implements go-dicom's codec.Codec for JPEG-LS Lossless.
// Encoding is not supported.
type Codec struct{}

// NewCodec creates a JPEG-LS Lossless decoder
func NewCodec() *Codec { return &Codec{} }

// Name returns the codec name
func (c *Codec) Name() string { return "JPEG-LS Lossless" }

// TransferSyntax returns the transfer syntax this codec handles
func (c *Codec) TransferSyntax() *transfer.Syntax { return transfer.JPEGLSLossless }

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

func decodeFrame(src []byte, info *imagetypes.FrameInfo) ([]byte, error) {
	res, err := Decode(src)
	if err != nil {
		return nil, fmt.Errorf("JPEG-LS decode failed: %w", err)
	}
	if err := codec.CheckDimensions(info, res.Width, res.Height, res.Components); err != nil {
		return nil, err
	}
	if stored := int(info.BitsStored); stored > 0 && res.Precision > stored {
		return nil, fmt.Errorf("%w: precision %d exceeds bits stored %d",
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
}
