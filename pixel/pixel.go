// Package pixel decodes the first frame of a parsed DICOM file through
// go-dicom's codec registry and imaging layer.
//
// Encapsulated data is cut down to the fragments of frame zero and run
// through a Transcoder to Explicit VR Little Endian; native data goes
// through the same Transcoder so big endian files are swapped. The result
// is loaded with imaging.CreatePixelData, which also expands PALETTE COLOR.
package pixel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cocosip/go-dicom/pkg/dicom/dataset"
	"github.com/cocosip/go-dicom/pkg/dicom/element"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/dicom/vr"
	"github.com/cocosip/go-dicom/pkg/imaging"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"
	"github.com/cocosip/go-dicom/pkg/io/buffer"

	"github.com/cocosip/go-dicom-cards/codec"
	"github.com/cocosip/go-dicom-cards/container"
)

// itemHeader is the size of a fragment item tag and length
const itemHeader = 8

// Window is a VOI LUT window (first value of Window Center/Width)
type Window struct {
	Center float64
	Width  float64
}

// Frame is frame zero of a file with the attributes needed to render it.
// Pixels holds one interleaved frame of 8 or 16 bit samples, masked to Bits
// Stored and, for signed monochrome data, sign-extended to the allocated
// width. Its High Bit is Bits Stored - 1.
type Frame struct {
	Pixels *imaging.DicomPixelData

	Path             string
	Frames           int // declared Number of Frames; only frame zero is decoded
	TransferSyntax   string
	RescaleSlope     float64
	RescaleIntercept float64
	Window           *Window
}

func (fr *Frame) Width() int       { return int(fr.Pixels.Info.Width) }
func (fr *Frame) Height() int      { return int(fr.Pixels.Info.Height) }
func (fr *Frame) Samples() int     { return int(fr.Pixels.Info.SamplesPerPixel) }
func (fr *Frame) BitsStored() int  { return int(fr.Pixels.Info.BitsStored) }
func (fr *Frame) Signed() bool     { return fr.Pixels.Info.PixelRepresentation == imaging.SignedPixels }
func (fr *Frame) BytesPerSample() int {
	return fr.Pixels.Info.BytesAllocated()
}

// Photometric returns the color space of the decoded samples
func (fr *Frame) Photometric() string {
	if pi := fr.Pixels.Info.PhotometricInterpretation; pi != nil {
		return pi.Value
	}
	return ""
}

// Data returns the sample bytes of the frame
func (fr *Frame) Data() []byte {
	data, err := fr.Pixels.GetFrame(0)
	if err != nil {
		return nil
	}
	return data
}

// Info reads the image pixel module of f as declared. Missing attributes
// take their DICOM defaults.
func Info(f *container.File) *imagetypes.FrameInfo {
	allocated := f.Uint16(tag.BitsAllocated, 0)
	stored := f.Uint16(tag.BitsStored, allocated)
	hb := uint16(0)
	if stored > 0 {
		hb = stored - 1
	}
	info := &imagetypes.FrameInfo{
		Width:               f.Uint16(tag.Columns, 0),
		Height:              f.Uint16(tag.Rows, 0),
		BitsAllocated:       allocated,
		BitsStored:          stored,
		HighBit:             f.Uint16(tag.HighBit, hb),
		SamplesPerPixel:     f.Uint16(tag.SamplesPerPixel, 1),
		PixelRepresentation: f.Uint16(tag.PixelRepresentation, 0),
		PlanarConfiguration: f.Uint16(tag.PlanarConfiguration, 0),
	}

	pi, _ := f.String(tag.PhotometricInterpretation)
	pi = strings.ToUpper(strings.TrimSpace(pi))
	if pi == "" {
		pi = "MONOCHROME2"
		if info.SamplesPerPixel == 3 {
			pi = "RGB"
		}
	}
	info.PhotometricInterpretation = pi
	return info
}

// Decode decodes frame zero of f with the codec registered for its
// transfer syntax. A nil registry means go-dicom's global registry, which
// holds the native and RLE codecs plus every backend imported for its
// side effects.
func Decode(f *container.File, reg *gocodec.Registry) (*Frame, error) {
	if reg == nil {
		reg = gocodec.GetGlobalRegistry()
	}
	uid := f.TransferSyntaxUID()
	fail := func(err error) (*Frame, error) {
		return nil, &DecodeError{Path: f.Path, TransferSyntax: uid, Err: err}
	}

	pd, err := f.PixelData()
	if err != nil {
		return fail(err)
	}
	frames := 1
	if n, ok := f.Int(tag.NumberOfFrames); ok && n > 1 {
		frames = n
	}

	native, err := toNative(f, pd, frames, reg)
	if err != nil {
		return fail(err)
	}
	decoded, err := imaging.CreatePixelData(native)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrPixelModule, err))
	}
	pixels, err := canonical(decoded)
	if err != nil {
		return fail(err)
	}

	fr := &Frame{
		Pixels:           pixels,
		Path:             f.Path,
		Frames:           frames,
		TransferSyntax:   uid,
		RescaleSlope:     1,
		RescaleIntercept: 0,
	}
	if slope, ok := f.Float(tag.RescaleSlope); ok && slope != 0 {
		fr.RescaleSlope = slope
	}
	if intercept, ok := f.Float(tag.RescaleIntercept); ok {
		fr.RescaleIntercept = intercept
	}
	center, okC := f.Float(tag.WindowCenter)
	width, okW := f.Float(tag.WindowWidth)
	if okC && okW && width >= 1 {
		fr.Window = &Window{Center: center, Width: width}
	}
	return fr, nil
}

// toNative returns a single-frame Explicit VR Little Endian copy of the
// dataset holding frame zero
func toNative(f *container.File, pd *container.PixelData, frames int, reg *gocodec.Registry) (*dataset.Dataset, error) {
	ts := f.TransferSyntax
	single := f.Dataset.Clone()
	single.Remove(tag.NumberOfFrames)

	if !ts.IsEncapsulated() {
		if pd.Encapsulated() {
			return nil, fmt.Errorf("%w: fragments in a native transfer syntax", container.ErrPixelDataType)
		}
		return gocodec.NewTranscoder(ts, transfer.ExplicitVRLittleEndian,
			gocodec.WithCodecRegistry(reg)).Transcode(single)
	}

	c, err := codec.Lookup(reg, ts)
	if err != nil {
		return nil, err
	}
	if !pd.Encapsulated() {
		return nil, fmt.Errorf("%w: native pixel data in an encapsulated transfer syntax", container.ErrPixelDataType)
	}
	data, err := firstFragmentFrame(pd, frames)
	if err != nil {
		return nil, err
	}

	frag := element.NewOtherByteFragment(tag.PixelData)
	frag.AddFragment(buffer.NewMemory(data))
	if err := single.AddOrUpdate(frag); err != nil {
		return nil, err
	}

	out, err := gocodec.NewTranscoder(ts, transfer.ExplicitVRLittleEndian,
		gocodec.WithCodecRegistry(reg),
		gocodec.WithInputCodec(c),
	).Transcode(single)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}

	if pc, ok := c.(codec.PhotometricConverter); ok {
		info := Info(f)
		if pi := pc.DecodedPhotometric(info); pi != info.PhotometricInterpretation {
			if err := out.AddOrUpdate(element.NewString(tag.PhotometricInterpretation, vr.CS, []string{pi})); err != nil {
				return nil, err
			}
			if err := out.AddOrUpdate(element.NewUnsignedShort(tag.PlanarConfiguration, []uint16{0})); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// firstFragmentFrame returns the compressed bytes of frame zero. A single
// frame spans every fragment. With several frames the basic offset table
// selects the fragments when it has one entry per frame; otherwise one
// fragment per frame is expected, or frame zero ends at the first fragment
// that closes a JPEG stream.
func firstFragmentFrame(pd *container.PixelData, frames int) ([]byte, error) {
	nonEmpty := make([][]byte, 0, len(pd.Fragments))
	for _, frag := range pd.Fragments {
		if len(frag) > 0 {
			nonEmpty = append(nonEmpty, frag)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, container.ErrNoPixelData
	}
	if frames <= 1 {
		return bytes.Join(nonEmpty, nil), nil
	}

	if len(pd.Offsets) == frames {
		for _, header := range []int{itemHeader, 0} {
			if idx, ok := fragmentIndex(pd.Fragments, pd.Offsets, header); ok && idx[1] > idx[0] {
				return bytes.Join(pd.Fragments[idx[0]:idx[1]], nil), nil
			}
		}
		return nil, fmt.Errorf("%w: offset table %v does not match the fragments", ErrFragments, pd.Offsets)
	}

	if len(nonEmpty) < frames {
		return nil, fmt.Errorf("%w: %d fragments for %d frames", ErrFragments, len(nonEmpty), frames)
	}
	if len(nonEmpty) == frames {
		return nonEmpty[0], nil
	}
	var out []byte
	for _, frag := range nonEmpty {
		out = append(out, frag...)
		if endsWithEOI(frag) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot find the end of frame zero in %d fragments", ErrFragments, len(nonEmpty))
}

// fragmentIndex maps each offset to the fragment it points at. Offsets count
// from the first fragment item; header is the item header size included in
// them.
func fragmentIndex(frags [][]byte, offsets []uint32, header int) ([]int, bool) {
	starts := make(map[uint32]int, len(frags))
	var at uint32
	for i, frag := range frags {
		starts[at] = i
		at += uint32(header + len(frag))
	}
	idx := make([]int, len(offsets))
	for i, off := range offsets {
		j, ok := starts[off]
		if !ok {
			return nil, false
		}
		idx[i] = j
	}
	return idx, true
}

func endsWithEOI(frag []byte) bool {
	n := len(frag)
	if n >= 1 && frag[n-1] == 0x00 {
		n--
	}
	return n >= 2 && frag[n-2] == 0xFF && frag[n-1] == 0xD9
}

// canonical returns frame zero of decoded, interleaved, with samples masked
// to Bits Stored and signed monochrome samples sign-extended
func canonical(decoded *imaging.DicomPixelData) (*imaging.DicomPixelData, error) {
	if err := decoded.EnsureInterleaved(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPixelModule, err)
	}
	data, err := decoded.GetFrame(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPixelModule, err)
	}

	info := *decoded.Info
	allocated := int(info.BitsAllocated)
	if allocated != 8 && allocated != 16 {
		return nil, fmt.Errorf("%w: %d", codec.ErrUnsupportedBitDepth, allocated)
	}
	stored := int(info.BitsStored)
	shift := 0
	if hb := int(info.HighBit); hb >= stored-1 && hb < allocated {
		shift = hb + 1 - stored
	}
	mask := 1<<uint(stored) - 1
	signed := info.PixelRepresentation == imaging.SignedPixels && info.SamplesPerPixel == 1

	out := make([]byte, len(data))
	if allocated == 8 {
		for i, b := range data {
			out[i] = byte(extend(int(b), shift, mask, stored, signed))
		}
	} else {
		for i := 0; i+1 < len(data); i += 2 {
			v := extend(int(binary.LittleEndian.Uint16(data[i:])), shift, mask, stored, signed)
			binary.LittleEndian.PutUint16(out[i:], uint16(v))
		}
	}

	info.HighBit = uint16(stored - 1)
	info.NumberOfFrames = 1
	if !signed {
		info.PixelRepresentation = 0
	}
	pixels, err := imaging.NewDicomPixelDataFromBytes(&info, out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPixelModule, err)
	}
	return pixels, nil
}

func extend(v, shift, mask, bits int, signed bool) int {
	v = (v >> uint(shift)) & mask
	if signed && v&(1<<uint(bits-1)) != 0 {
		v -= 1 << uint(bits)
	}
	return v
}
