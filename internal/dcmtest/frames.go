package dcmtest

import (
	"fmt"

	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"
)

// Frames is an in-memory imagetypes.PixelData for driving codecs directly
type Frames struct {
	Info         *imagetypes.FrameInfo
	Data         [][]byte
	Encapsulated bool
}

// NewFrames returns pixel data holding the given frames
func NewFrames(info *imagetypes.FrameInfo, encapsulated bool, frames ...[]byte) *Frames {
	return &Frames{Info: info, Data: frames, Encapsulated: encapsulated}
}

func (f *Frames) GetFrame(i int) ([]byte, error) {
	if i < 0 || i >= len(f.Data) {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	return f.Data[i], nil
}

func (f *Frames) AddFrame(data []byte) error {
	f.Data = append(f.Data, data)
	return nil
}

func (f *Frames) FrameCount() int                       { return len(f.Data) }
func (f *Frames) GetFrameInfo() *imagetypes.FrameInfo { return f.Info }
func (f *Frames) IsEncapsulated() bool                  { return f.Encapsulated }

// GrayInfo describes a single-sample MONOCHROME2 frame
func GrayInfo(width, height, allocated, stored int) *imagetypes.FrameInfo {
	return &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             uint16(allocated),
		BitsStored:                uint16(stored),
		HighBit:                   uint16(stored - 1),
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
	}
}
