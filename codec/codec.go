// Package codec holds what the pixel data backends share: the per-frame
// decode loop over go-dicom's imagetypes.PixelData, sample width helpers,
// sentinel errors and lookups in go-dicom's codec registry.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"
)

// FrameDecoder decodes the compressed bytes of one frame into native
// samples, interleaved and little endian, sized for info.BitsAllocated.
type FrameDecoder func(src []byte, info *imagetypes.FrameInfo) ([]byte, error)

// PhotometricConverter is implemented by codecs whose output color space
// differs from the declared Photometric Interpretation, such as JPEG
// decoders that return RGB for YCbCr streams.
type PhotometricConverter interface {
	DecodedPhotometric(info *imagetypes.FrameInfo) string
}

// DecodeFrames decodes every frame of src into dst
func DecodeFrames(src, dst imagetypes.PixelData, decode FrameDecoder) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil pixel data", ErrInvalidParameter)
	}
	info := src.GetFrameInfo()
	if info == nil {
		return fmt.Errorf("%w: no frame info", ErrInvalidParameter)
	}
	want := FrameLength(info)

	for i := 0; i < src.FrameCount(); i++ {
		frame, err := src.GetFrame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if len(frame) == 0 {
			return fmt.Errorf("frame %d: %w", i, ErrEmptyFrame)
		}

		out, err := decode(frame, info)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if len(out) != want {
			return fmt.Errorf("frame %d: %w: decoded %d bytes, want %d", i, ErrLengthMismatch, len(out), want)
		}
		if err := dst.AddFrame(out); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// BytesPerSample returns the storage size of one allocated sample
func BytesPerSample(info *imagetypes.FrameInfo) int {
	return (int(info.BitsAllocated) + 7) / 8
}

// FrameLength returns the byte length of one native interleaved frame
func FrameLength(info *imagetypes.FrameInfo) int {
	return int(info.Width) * int(info.Height) * int(info.SamplesPerPixel) * BytesPerSample(info)
}

// CheckDimensions compares a decoded image with the declared frame
func CheckDimensions(info *imagetypes.FrameInfo, width, height, components int) error {
	if width != int(info.Width) || height != int(info.Height) {
		return fmt.Errorf("%w: decoded %dx%d, declared %dx%d",
			ErrInvalidDimensions, width, height, info.Width, info.Height)
	}
	if components != int(info.SamplesPerPixel) {
		return fmt.Errorf("%w: decoded %d components, declared %d",
			ErrUnsupportedSamples, components, info.SamplesPerPixel)
	}
	return nil
}

// Allocate stores decoded samples of the given width (1 or 2 bytes) in the
// declared Bits Allocated. Widening zero-extends; narrowing is an error.
func Allocate(samples []byte, width int, info *imagetypes.FrameInfo) ([]byte, error) {
	bps := BytesPerSample(info)
	switch {
	case width == bps:
		return samples, nil
	case width == 1 && bps == 2:
		out := make([]byte, len(samples)*2)
		for i, v := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d-byte samples for %d bits allocated",
		ErrUnsupportedBitDepth, width, info.BitsAllocated)
}
