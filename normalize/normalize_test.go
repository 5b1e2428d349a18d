package normalize

import (
	"encoding/binary"
	"errors"
	"image/color"
	"testing"

	"github.com/cocosip/go-dicom/pkg/imaging"

	"github.com/cocosip/go-dicom-cards/pixel"
)

func frame(width, height, samples, allocated, stored int, signed bool, photometric string, data []byte) *pixel.Frame {
	pr := imaging.PixelRepresentation(0)
	if signed {
		pr = imaging.SignedPixels
	}
	info := &imaging.PixelDataInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		NumberOfFrames:            1,
		BitsAllocated:             uint16(allocated),
		BitsStored:                uint16(stored),
		HighBit:                   uint16(stored - 1),
		SamplesPerPixel:           uint16(samples),
		PixelRepresentation:       pr,
		PhotometricInterpretation: imaging.MustParsePhotometricInterpretation(photometric),
	}
	pd, err := imaging.NewDicomPixelDataFromBytes(info, data)
	if err != nil {
		panic(err)
	}
	return &pixel.Frame{Pixels: pd, RescaleSlope: 1}
}

func gray8(width, height int, photometric string, data ...byte) *pixel.Frame {
	return frame(width, height, 1, 8, 8, false, photometric, data)
}

func gray16(width, height, bits int, signed bool, samples ...uint16) *pixel.Frame {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], s)
	}
	return frame(width, height, 1, 16, bits, signed, "MONOCHROME2", data)
}

func rgb(width, height int, photometric string, data ...byte) *pixel.Frame {
	return frame(width, height, 3, 8, 8, false, photometric, data)
}

func TestGray(t *testing.T) {
	windowed := gray8(3, 1, "MONOCHROME2", 0, 60, 200)
	windowed.RescaleIntercept = -10
	windowed.Window = &pixel.Window{Center: 50, Width: 101}

	inverted := gray16(2, 1, 12, false, 0, 1000)
	inverted.RescaleSlope = -1
	inverted.RescaleIntercept = 1000
	inverted.Window = &pixel.Window{Center: 500, Width: 1000}

	scaled := gray16(3, 1, 12, false, 100, 200, 300)
	scaled.RescaleSlope = 2.5
	scaled.RescaleIntercept = -1024

	mirrored := gray16(3, 1, 12, false, 100, 200, 300)
	mirrored.RescaleSlope = -1

	tests := []struct {
		name  string
		frame *pixel.Frame
		want  []byte
	}{
		{"8-bit passes through", gray8(3, 1, "MONOCHROME2", 0, 128, 255), []byte{0, 128, 255}},
		{"MONOCHROME1 inverts", gray8(2, 1, "MONOCHROME1", 0, 255), []byte{255, 0}},
		{"12-bit min-max rounds half up", gray16(3, 1, 12, false, 100, 200, 300), []byte{0, 128, 255}},
		{"16-bit min-max", gray16(3, 1, 16, false, 100, 200, 300), []byte{0, 128, 255}},
		{"signed 16-bit min-max", gray16(3, 1, 16, true, 0xFF9C, 0, 100), []byte{0, 128, 255}},
		{"signed 12-bit min-max", gray16(2, 1, 12, true, 0xF800, 0x07FF), []byte{0, 255}},
		{"positive rescale keeps min-max", scaled, []byte{0, 128, 255}},
		{"negative rescale mirrors min-max", mirrored, []byte{255, 128, 0}},
		{"flat frame", gray16(2, 2, 16, false, 7, 7, 7, 7), []byte{0, 0, 0, 0}},
		{"window with rescale", windowed, []byte{0, 128, 255}},
		{"window with negative slope", inverted, []byte{255, 0}},
		{"YBR_FULL takes Y", rgb(2, 1, "YBR_FULL", 10, 128, 128, 200, 0, 255), []byte{10, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Gray(tt.frame)
			if err != nil {
				t.Fatalf("Gray failed: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.frame.Width() || b.Dy() != tt.frame.Height() {
				t.Errorf("bounds = %v, want %dx%d", b, tt.frame.Width(), tt.frame.Height())
			}
			if string(img.Pix) != string(tt.want) {
				t.Errorf("Pix = %v, want %v", img.Pix, tt.want)
			}
		})
	}
}

func TestGrayMonochrome1Window(t *testing.T) {
	fr := frame(2, 1, 1, 16, 16, false, "MONOCHROME1", []byte{0, 0, 0xE8, 0x03})
	fr.Window = &pixel.Window{Center: 500, Width: 1000}

	img, err := Gray(fr)
	if err != nil {
		t.Fatalf("Gray failed: %v", err)
	}
	if img.Pix[0] != 255 || img.Pix[1] != 0 {
		t.Errorf("Pix = %v, want [255 0]", img.Pix)
	}
}

func TestGrayRGBLuminance(t *testing.T) {
	tests := []struct {
		c    color.RGBA
		want byte
	}{
		{color.RGBA{255, 0, 0, 255}, 76},
		{color.RGBA{0, 255, 0, 255}, 150},
		{color.RGBA{0, 0, 255, 255}, 29},
		{color.RGBA{255, 255, 255, 255}, 255},
		{color.RGBA{12, 200, 77, 255}, 130},
	}
	data := make([]byte, 0, len(tests)*3)
	for _, tt := range tests {
		data = append(data, tt.c.R, tt.c.G, tt.c.B)
	}

	img, err := Gray(rgb(len(tests), 1, "RGB", data...))
	if err != nil {
		t.Fatalf("Gray failed: %v", err)
	}
	for i, tt := range tests {
		if img.Pix[i] != tt.want {
			t.Errorf("pixel %d (%v) = %d, want %d", i, tt.c, img.Pix[i], tt.want)
		}
		if y := color.GrayModel.Convert(tt.c).(color.Gray).Y; y != tt.want {
			t.Errorf("color.GrayModel(%v) = %d, want %d", tt.c, y, tt.want)
		}
	}
}

func TestGrayRGB16TruncatesTo8Bits(t *testing.T) {
	data := make([]byte, 6)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], 0xFF00)
	}

	img, err := Gray(frame(1, 1, 3, 16, 16, false, "RGB", data))
	if err != nil {
		t.Fatalf("Gray failed: %v", err)
	}
	if img.Pix[0] != 255 {
		t.Errorf("Pix[0] = %d, want 255", img.Pix[0])
	}
}

func TestGraySubsampledYBR(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		data   []byte
		want   []byte
	}{
		{"even width", 2, 1, []byte{100, 200, 128, 128}, []byte{100, 200}},
		{
			"odd width pads rows", 3, 2,
			[]byte{10, 20, 128, 128, 30, 99, 128, 128, 50, 60, 128, 128, 70, 99, 128, 128},
			[]byte{10, 20, 30, 50, 60, 70},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := rgb(tt.width, tt.height, "YBR_FULL_422", tt.data...)
			img, err := Gray(fr)
			if err != nil {
				t.Fatalf("Gray failed: %v", err)
			}
			if string(img.Pix) != string(tt.want) {
				t.Errorf("Pix = %v, want %v", img.Pix, tt.want)
			}
			if fr.Photometric() != "YBR_FULL_422" {
				t.Errorf("source frame converted in place: %s", fr.Photometric())
			}
		})
	}
}

func TestGrayDeterministic(t *testing.T) {
	fr := gray16(4, 1, 12, false, 5, 900, 2048, 4095)
	a, err := Gray(fr)
	if err != nil {
		t.Fatalf("Gray failed: %v", err)
	}
	b, err := Gray(fr)
	if err != nil {
		t.Fatalf("Gray failed: %v", err)
	}
	if string(a.Pix) != string(b.Pix) {
		t.Errorf("outputs differ: %v vs %v", a.Pix, b.Pix)
	}
}

func TestGrayErrors(t *testing.T) {
	zeroWidth := gray8(1, 1, "MONOCHROME2", 1)
	zeroWidth.Pixels.Info.Width = 0

	short := gray8(2, 1, "MONOCHROME2", 1, 2)
	short.Pixels.Info.Height = 2

	twoSamples := rgb(1, 1, "RGB", 1, 2, 3)
	twoSamples.Pixels.Info.SamplesPerPixel = 2

	wide := frame(1, 1, 1, 32, 32, false, "MONOCHROME2", []byte{1, 2, 3, 4})

	tests := []struct {
		name  string
		frame *pixel.Frame
		want  error
	}{
		{"nil frame", nil, ErrNilFrame},
		{"no pixels", &pixel.Frame{}, ErrNilFrame},
		{"zero width", zeroWidth, ErrInvalidDimensions},
		{"short buffer", short, ErrLengthMismatch},
		{"two samples", twoSamples, ErrUnsupportedSamples},
		{"32-bit samples", wide, ErrUnsupportedBitDepth},
		{"4:2:0 chroma", rgb(2, 1, "YBR_PARTIAL_420", 1, 2, 3, 4, 5, 6), ErrUnsupportedPhotometric},
		{"16-bit 4:2:2", frame(2, 1, 3, 16, 16, false, "YBR_FULL_422", make([]byte, 8)), ErrUnsupportedPhotometric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Gray(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Gray error = %v, want %v", err, tt.want)
			}
			var ne *Error
			if !errors.As(err, &ne) {
				t.Errorf("Gray error %T is not *Error", err)
			}
		})
	}
}
