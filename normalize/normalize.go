// Package normalize converts decoded frames to 8-bit grayscale images.
//
// Monochrome frames with a VOI window go through go-dicom's linear window
// LUT, with the modality rescale folded into the window. Without one,
// unsigned data of at most 8 bits is kept as is and deeper data is
// stretched from the frame minimum to its maximum. MONOCHROME1 is
// inverted last.
//
// Color frames use Rec. 601 integer luminance for RGB and the Y channel for
// the full-bandwidth YBR color spaces. Subsampled YBR is converted to RGB
// by go-dicom first.
package normalize

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/cocosip/go-dicom/pkg/imaging"

	"github.com/cocosip/go-dicom-cards/pixel"
)

// Gray converts fr to an 8-bit grayscale image of the same size
func Gray(fr *pixel.Frame) (*image.Gray, error) {
	if fr == nil || fr.Pixels == nil || fr.Pixels.Info == nil {
		return nil, &Error{Err: ErrNilFrame}
	}
	fail := func(err error) (*image.Gray, error) {
		return nil, &Error{Path: fr.Path, Err: err}
	}

	w, h := fr.Width(), fr.Height()
	if w <= 0 || h <= 0 {
		return fail(fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h))
	}
	if bps := fr.BytesPerSample(); bps != 1 && bps != 2 {
		return fail(fmt.Errorf("%w: %d bytes per sample", ErrUnsupportedBitDepth, bps))
	}
	if got, want := len(fr.Data()), fr.Pixels.Info.UncompressedFrameSize(); got < want {
		return fail(fmt.Errorf("%w: %d bytes for %dx%dx%d, want %d",
			ErrLengthMismatch, got, w, h, fr.Samples(), want))
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	var err error
	switch fr.Samples() {
	case 1:
		err = monochrome(fr, img.Pix)
	case 3:
		err = colorGray(fr, img.Pix)
	default:
		err = fmt.Errorf("%w: %d", ErrUnsupportedSamples, fr.Samples())
	}
	if err != nil {
		return fail(err)
	}
	return img, nil
}

// sample returns stored value i of a canonical frame
func sample(data []byte, i, bps int, signed bool) int {
	if bps == 1 {
		if signed {
			return int(int8(data[i]))
		}
		return int(data[i])
	}
	v := binary.LittleEndian.Uint16(data[i*2:])
	if signed {
		return int(int16(v))
	}
	return int(v)
}

func monochrome(fr *pixel.Frame, out []byte) error {
	switch {
	case fr.Window != nil:
		if err := window(fr, out); err != nil {
			return err
		}

	case !fr.Signed() && fr.BitsStored() <= 8:
		data, bps := fr.Data(), fr.BytesPerSample()
		for i := range out {
			out[i] = byte(sample(data, i, bps, false))
		}

	default:
		if err := stretch(fr, out); err != nil {
			return err
		}
	}

	if fr.Photometric() == "MONOCHROME1" {
		for i := range out {
			out[i] = 255 - out[i]
		}
	}
	return nil
}

// window applies the VOI window given in modality units. The linear LUT
// runs on stored values, so the window is moved through the inverse of the
// rescale; a negative slope mirrors the result.
func window(fr *pixel.Frame, out []byte) error {
	k, b := fr.RescaleSlope, fr.RescaleIntercept
	c, w := fr.Window.Center, fr.Window.Width
	ak := math.Abs(k)

	center := (c-0.5-b)/k + 0.5
	if k < 0 {
		center = (b-c+0.5)/ak + 0.5
	}
	width := (w-1)/ak + 1

	frames, err := fr.Pixels.WindowTo8bit(center, width, false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWindow, err)
	}
	copy(out, frames[0])
	if k < 0 {
		for i := range out {
			out[i] = 255 - out[i]
		}
	}
	return nil
}

// stretch maps the frame minimum to 0 and its maximum to 255, rounding
// half up. A flat frame is black.
func stretch(fr *pixel.Frame, out []byte) error {
	lo, hi, err := fr.Pixels.MinMax(false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWindow, err)
	}
	if hi <= lo {
		clear(out)
		return nil
	}

	data, bps, signed := fr.Data(), fr.BytesPerSample(), fr.Signed()
	invert := fr.RescaleSlope < 0
	for i := range out {
		v := float64(sample(data, i, bps, signed))
		d := v - lo
		if invert {
			d = hi - v
		}
		out[i] = clamp(math.Floor(d*255/(hi-lo) + 0.5))
	}
	return nil
}

func clamp(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func colorGray(fr *pixel.Frame, out []byte) error {
	switch pi := fr.Photometric(); pi {
	case "RGB":
		luminance(fr.Data(), fr.BytesPerSample(), colorShift(fr), out)
	case "YBR_FULL", "YBR_ICT", "YBR_RCT":
		data, bps, down := fr.Data(), fr.BytesPerSample(), colorShift(fr)
		for p := range out {
			out[p] = byte(sample(data, p*3, bps, false) >> down)
		}
	case "YBR_FULL_422", "YBR_PARTIAL_422":
		rgb, stride, err := toRGB(fr)
		if err != nil {
			return err
		}
		w := fr.Width()
		for y := 0; y < fr.Height(); y++ {
			luminance(rgb[y*stride*3:], 1, 0, out[y*w:(y+1)*w])
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedPhotometric, pi)
	}
	return nil
}

// colorShift drops the low bits of samples deeper than 8 bits
func colorShift(fr *pixel.Frame) uint {
	if bits := fr.BitsStored(); bits > 8 {
		return uint(bits - 8)
	}
	return 0
}

// luminance writes the Rec. 601 luma of len(out) interleaved RGB pixels.
// The weights match color.GrayModel.
func luminance(rgb []byte, bps int, down uint, out []byte) {
	for p := range out {
		r := uint32(sample(rgb, p*3, bps, false) >> down)
		g := uint32(sample(rgb, p*3+1, bps, false) >> down)
		b := uint32(sample(rgb, p*3+2, bps, false) >> down)
		out[p] = byte((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
	}
}

// toRGB converts a copy of a subsampled YBR frame to interleaved 8-bit RGB.
// stride is the pixel count of one converted row, which is padded to an
// even width.
func toRGB(fr *pixel.Frame) ([]byte, int, error) {
	if fr.BytesPerSample() != 1 {
		return nil, 0, fmt.Errorf("%w: %s with %d bits allocated",
			ErrUnsupportedPhotometric, fr.Photometric(), fr.Pixels.Info.BitsAllocated)
	}
	info := *fr.Pixels.Info
	ybr, err := imaging.NewDicomPixelDataFromBytes(&info, append([]byte(nil), fr.Data()...))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedPhotometric, err)
	}
	if err := ybr.ConvertYBRToRGB(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedPhotometric, err)
	}
	rgb, err := ybr.GetFrame(0)
	if err != nil {
		return nil, 0, err
	}
	return rgb, len(rgb) / 3 / fr.Height(), nil
}
