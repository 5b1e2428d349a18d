package pixel_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/dicom/vr"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-dicom-cards/codec"
	"github.com/cocosip/go-dicom-cards/container"
	"github.com/cocosip/go-dicom-cards/internal/dcmtest"
	_ "github.com/cocosip/go-dicom-cards/jpeg/baseline"
	"github.com/cocosip/go-dicom-cards/jpeg/common"
	_ "github.com/cocosip/go-dicom-cards/jpeg/extended"
	"github.com/cocosip/go-dicom-cards/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-cards/jpegls/lossless"
	"github.com/cocosip/go-dicom-cards/pixel"
)

func open(t *testing.T, f *dcmtest.File) *container.File {
	t.Helper()
	file, err := container.Open(f.Write(t, t.TempDir(), "image.dcm"))
	require.NoError(t, err)
	return file
}

func TestDecodeNativeGray8(t *testing.T) {
	pixels := []byte{0, 50, 100, 150, 200, 250}
	fr, err := pixel.Decode(open(t, dcmtest.Gray8(3, 2, pixels)), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, fr.Width())
	assert.Equal(t, 2, fr.Height())
	assert.Equal(t, 1, fr.Samples())
	assert.Equal(t, 8, fr.BitsStored())
	assert.Equal(t, 1, fr.BytesPerSample())
	assert.Equal(t, "MONOCHROME2", fr.Photometric())
	assert.Equal(t, 1, fr.Frames)
	assert.Equal(t, transfer.ExplicitVRLittleEndian.UID().UID(), fr.TransferSyntax)
	assert.Equal(t, 1.0, fr.RescaleSlope)
	assert.Nil(t, fr.Window)
	assert.Equal(t, pixels, fr.Data())
}

func TestDecodeImplicitVR(t *testing.T) {
	pixels := []byte{1, 2, 3, 4}
	f := dcmtest.Gray8(2, 2, pixels)
	f.TransferSyntax = transfer.ImplicitVRLittleEndian

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, pixels, fr.Data())
	assert.Equal(t, transfer.ImplicitVRLittleEndian.UID().UID(), fr.TransferSyntax)
}

func TestDecodeRenderingAttributes(t *testing.T) {
	samples := []uint16{0, 1000, 2000, 4095}
	f := dcmtest.Gray16(2, 2, 12, false, samples).
		SetString(tag.RescaleSlope, vr.DS, "2").
		SetString(tag.RescaleIntercept, vr.DS, "-1024").
		SetString(tag.WindowCenter, vr.DS, `40\50`).
		SetString(tag.WindowWidth, vr.DS, `400\500`)

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)

	assert.Equal(t, 12, fr.BitsStored())
	assert.Equal(t, uint16(11), fr.Pixels.Info.HighBit)
	assert.Equal(t, 2, fr.BytesPerSample())
	assert.Equal(t, 2.0, fr.RescaleSlope)
	assert.Equal(t, -1024.0, fr.RescaleIntercept)
	require.NotNil(t, fr.Window)
	assert.Equal(t, pixel.Window{Center: 40, Width: 400}, *fr.Window)
	assert.Equal(t, uint16(4095), binary.LittleEndian.Uint16(fr.Data()[6:]))
}

func TestDecodeIgnoresDegenerateAttributes(t *testing.T) {
	f := dcmtest.Gray8(2, 2, []byte{1, 2, 3, 4}).
		SetString(tag.RescaleSlope, vr.DS, "0").
		SetString(tag.WindowCenter, vr.DS, "40").
		SetString(tag.WindowWidth, vr.DS, "0.5")

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fr.RescaleSlope)
	assert.Nil(t, fr.Window)
}

func TestDecodeMasksHighBitsAndSignExtends(t *testing.T) {
	tests := []struct {
		name    string
		stored  int
		signed  bool
		samples []uint16
		want    []uint16
	}{
		{"unsigned overlay bits", 12, false, []uint16{0xF123, 0x0FFF}, []uint16{0x0123, 0x0FFF}},
		{"signed 12-bit", 12, true, []uint16{0x0800, 0x07FF, 0xFFFF}, []uint16{0xF800, 0x07FF, 0xFFFF}},
		{"signed 16-bit", 16, true, []uint16{0x8000, 0x0001}, []uint16{0x8000, 0x0001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := dcmtest.Gray16(len(tt.samples), 1, tt.stored, tt.signed, tt.samples)
			fr, err := pixel.Decode(open(t, f), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.signed, fr.Signed())
			assert.Equal(t, dcmtest.Words(tt.want), fr.Data())
		})
	}
}

func TestDecodeMultiFrameKeepsFrameZero(t *testing.T) {
	frame0 := []byte{1, 2, 3, 4}
	frame1 := []byte{9, 9, 9, 9}
	f := dcmtest.Gray8(2, 2, append(append([]byte{}, frame0...), frame1...)).
		SetString(tag.NumberOfFrames, vr.IS, "2")

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Frames)
	assert.Equal(t, frame0, fr.Data())
}

func TestDecodeRGBNative(t *testing.T) {
	pixels := []byte{255, 0, 0, 0, 255, 0}
	fr, err := pixel.Decode(open(t, dcmtest.RGB8(2, 1, pixels)), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fr.Samples())
	assert.Equal(t, "RGB", fr.Photometric())
	assert.Equal(t, pixels, fr.Data())
}

func TestDecodeRLE(t *testing.T) {
	samples := []uint16{0x0102, 0x0304, 0xFFFF, 0x0000}
	f := dcmtest.Gray16(2, 2, 16, false, samples).RLE(t)

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, transfer.RLELossless.UID().UID(), fr.TransferSyntax)
	assert.Equal(t, dcmtest.Words(samples), fr.Data())
}

func TestDecodeJPEGLossless(t *testing.T) {
	samples := []int{10, 20, 30, 40, 50, 60}
	f := dcmtest.Gray8(3, 2, nil).
		Encapsulate(transfer.JPEGLosslessSV1, dcmtest.EncodeJPEGLossless(samples, 3, 2, 1, 8, 1))

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, fr.Data())
}

func TestDecodeJPEGExtended12Bit(t *testing.T) {
	stream := dcmtest.EncodeJPEGExtended([][64]int{dcmtest.DCBlock(1000)}, 8, 8, 1, 0)
	f := dcmtest.Gray16(8, 8, 12, false, nil).Encapsulate(transfer.JPEGExtended12Bit, stream)

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	data := fr.Data()
	require.Len(t, data, 8*8*2)
	for i := 0; i < 64; i++ {
		assert.Equal(t, uint16(1000), binary.LittleEndian.Uint16(data[i*2:]), "sample %d", i)
	}
}

func TestDecodeJPEGLS(t *testing.T) {
	samples := []int{0, 4095, 4095, 17, 17, 17, 2048, 1}
	stream := dcmtest.EncodeJPEGLS(samples, 4, 2, dcmtest.JPEGLSOptions{Precision: 12})
	f := dcmtest.Gray16(4, 2, 12, false, nil).Encapsulate(transfer.JPEGLSLossless, stream)

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	want := make([]uint16, len(samples))
	for i, s := range samples {
		want[i] = uint16(s)
	}
	assert.Equal(t, dcmtest.Words(want), fr.Data())
}

func TestDecodeBaselineReportsRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 64; i++ {
		img.Set(i%8, i/8, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	f := dcmtest.RGB8(8, 8, nil).
		SetString(tag.PhotometricInterpretation, vr.CS, "YBR_FULL_422").
		Encapsulate(transfer.JPEGBaseline8Bit, buf.Bytes())

	fr, err := pixel.Decode(open(t, f), nil)
	require.NoError(t, err)
	assert.Equal(t, "RGB", fr.Photometric())
	data := fr.Data()
	require.Len(t, data, 8*8*3)
	assert.InDelta(t, 200, int(data[0]), 8)
	assert.InDelta(t, 40, int(data[1]), 8)
}

// jpegLSFrames encodes one 2x2 8-bit JPEG-LS stream per frame
func jpegLSFrames(frames ...[]int) [][]byte {
	out := make([][]byte, len(frames))
	for i, samples := range frames {
		out[i] = dcmtest.EncodeJPEGLS(samples, 2, 2, dcmtest.JPEGLSOptions{Precision: 8})
	}
	return out
}

func TestDecodeEncapsulatedMultiFrame(t *testing.T) {
	frames := jpegLSFrames([]int{1, 2, 3, 4}, []int{200, 201, 202, 203}, []int{9, 9, 9, 9})

	t.Run("offset table", func(t *testing.T) {
		f := dcmtest.Gray8(2, 2, nil).
			SetString(tag.NumberOfFrames, vr.IS, "3").
			Encapsulate(transfer.JPEGLSLossless, frames...)

		fr, err := pixel.Decode(open(t, f), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, fr.Frames)
		assert.Equal(t, []byte{1, 2, 3, 4}, fr.Data())
	})

	t.Run("frame zero split across fragments", func(t *testing.T) {
		first := frames[0]
		half := len(first) / 2 &^ 1
		f := dcmtest.Gray8(2, 2, nil).
			SetString(tag.NumberOfFrames, vr.IS, "2").
			Encapsulate(transfer.JPEGLSLossless, first[:half], first[half:], frames[1])

		fr, err := pixel.Decode(open(t, f), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, fr.Data())
	})
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		file *dcmtest.File
		want error
	}{
		{
			name: "unsupported MPEG-2",
			file: dcmtest.Gray8(2, 2, nil).Encapsulate(transfer.MPEG2, []byte{0x00, 0x00, 0x01, 0xB3}),
			want: codec.ErrCodecNotFound,
		},
		{
			name: "unsupported JPEG 2000",
			file: dcmtest.Gray8(2, 2, nil).Encapsulate(transfer.JPEG2000, []byte{0xFF, 0x4F, 0xFF, 0xD9}),
			want: codec.ErrCodecNotFound,
		},
		{
			name: "no pixel data",
			file: dcmtest.Gray8(2, 2, nil).WithoutPixels(),
			want: container.ErrNoPixelData,
		},
		{
			name: "short native data",
			file: dcmtest.Gray8(4, 4, make([]byte, 6)),
			want: pixel.ErrPixelModule,
		},
		{
			name: "zero rows",
			file: dcmtest.Gray8(2, 2, make([]byte, 4)).SetUint16(tag.Rows, 0),
			want: pixel.ErrPixelModule,
		},
		{
			name: "corrupt JPEG-LS",
			file: dcmtest.Gray8(2, 2, nil).Encapsulate(transfer.JPEGLSLossless, []byte{0xFF, 0xD8, 0xFF, 0xD9}),
			want: common.ErrInvalidData,
		},
		{
			name: "too few fragments for frames",
			file: dcmtest.Gray8(2, 2, nil).
				SetString(tag.NumberOfFrames, vr.IS, "3").
				Encapsulate(transfer.JPEGLosslessSV1, []byte{0xFF, 0xD8, 0xFF, 0xD9}),
			want: pixel.ErrFragments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := open(t, tt.file)
			_, err := pixel.Decode(file, nil)
			require.Error(t, err)

			var de *pixel.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, file.Path, de.Path)
			assert.Equal(t, file.TransferSyntaxUID(), de.TransferSyntax)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodePrivateRegistry(t *testing.T) {
	samples := []int{10, 20, 30, 40}
	f := dcmtest.Gray8(2, 2, nil).
		Encapsulate(transfer.JPEGLossless, dcmtest.EncodeJPEGLossless(samples, 2, 2, 1, 8, 1))
	file := open(t, f)

	reg := gocodec.NewCodecRegistry()
	_, err := pixel.Decode(file, reg)
	assert.ErrorIs(t, err, codec.ErrCodecNotFound)

	codec.RegisterIn(reg, lossless.NewCodec())
	fr, err := pixel.Decode(file, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40}, fr.Data())
}

func TestInfoDefaults(t *testing.T) {
	f := dcmtest.Gray8(2, 2, []byte{1, 2, 3, 4}).
		Delete(tag.BitsStored).
		Delete(tag.HighBit).
		Delete(tag.SamplesPerPixel).
		Delete(tag.PhotometricInterpretation)

	info := pixel.Info(open(t, f))
	assert.Equal(t, uint16(8), info.BitsStored)
	assert.Equal(t, uint16(7), info.HighBit)
	assert.Equal(t, uint16(1), info.SamplesPerPixel)
	assert.Equal(t, "MONOCHROME2", info.PhotometricInterpretation)
}
