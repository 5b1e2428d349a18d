package baseline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-dicom-cards/codec"
	"github.com/cocosip/go-dicom-cards/internal/dcmtest"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, info *imagetypes.FrameInfo, stream []byte) ([]byte, error) {
	t.Helper()
	dst := dcmtest.NewFrames(info, false)
	if err := NewCodec().Decode(dcmtest.NewFrames(info, true, stream), dst, nil); err != nil {
		return nil, err
	}
	return dst.GetFrame(0)
}

func TestBaselineCodecDecodeGray(t *testing.T) {
	width, height := 64, 64
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}

	out, err := decode(t, dcmtest.GrayInfo(width, height, 8, 8), encode(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(out) != width*height {
		t.Fatalf("len = %d, want %d", len(out), width*height)
	}
	// A flat image survives DCT quantization almost exactly.
	for i, v := range out {
		if v < 126 || v > 130 {
			t.Fatalf("pixel %d = %d, want ~128", i, v)
		}
	}
}

func TestBaselineCodecDecodeColorReportsRGB(t *testing.T) {
	width, height := 16, 8
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}

	info := &imagetypes.FrameInfo{
		Width: uint16(width), Height: uint16(height), SamplesPerPixel: 3,
		BitsAllocated: 8, BitsStored: 8, HighBit: 7,
		PhotometricInterpretation: "YBR_FULL_422",
	}
	out, err := decode(t, info, encode(t, img))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := NewCodec().DecodedPhotometric(info); got != "RGB" {
		t.Errorf("DecodedPhotometric = %q, want RGB", got)
	}
	if len(out) != width*height*3 {
		t.Fatalf("len = %d, want %d", len(out), width*height*3)
	}
	if out[0] < 190 || out[1] > 45 {
		t.Errorf("first pixel = %v, want ~(200,30,30)", out[:3])
	}
}

func TestBaselineCodecKeepsMonochrome1(t *testing.T) {
	info := dcmtest.GrayInfo(8, 8, 8, 8)
	info.PhotometricInterpretation = "MONOCHROME1 "
	if got := NewCodec().DecodedPhotometric(info); got != "MONOCHROME1" {
		t.Errorf("DecodedPhotometric = %q, want MONOCHROME1", got)
	}
}

func TestBaselineCodecDimensionMismatch(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	_, err := decode(t, dcmtest.GrayInfo(16, 8, 8, 8), encode(t, img))
	if !errors.Is(err, codec.ErrInvalidDimensions) {
		t.Errorf("Decode error = %v, want %v", err, codec.ErrInvalidDimensions)
	}
}

func TestBaselineCodecRejectsGarbage(t *testing.T) {
	if _, err := decode(t, dcmtest.GrayInfo(1, 1, 8, 8), []byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("Decode of garbage succeeded, want error")
	}
	if _, err := decode(t, dcmtest.GrayInfo(1, 1, 8, 8), nil); !errors.Is(err, codec.ErrEmptyFrame) {
		t.Errorf("empty frame error = %v, want %v", err, codec.ErrEmptyFrame)
	}
}

func TestBaselineCodecRegistered(t *testing.T) {
	c, err := codec.Lookup(nil, transfer.JPEGBaseline8Bit)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if c.Name() != "JPEG Baseline" {
		t.Errorf("Name = %q", c.Name())
	}
}
