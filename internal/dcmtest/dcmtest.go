// Package dcmtest writes small synthetic DICOM Part 10 files for tests.
//
// Files are built as go-dicom datasets and written with go-dicom's writer,
// so every fixture goes through the same encoder real tools use. Pixel data
// is stored natively (OB/OW) or encapsulated; RLE fixtures are produced by
// go-dicom's own RLE codec.
package dcmtest

import (
	"encoding/binary"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cocosip/go-dicom/pkg/dicom/dataset"
	"github.com/cocosip/go-dicom/pkg/dicom/element"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/dicom/vr"
	"github.com/cocosip/go-dicom/pkg/dicom/writer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/io/buffer"
)

const (
	secondaryCaptureSOPClass = "1.2.840.10008.5.1.4.1.1.7"
	sopInstanceUID           = "1.2.826.0.1.3680043.10.1408.2.1"
)

// Default metadata written by the image builders
const (
	DefaultStudyDate       = "20230615"
	DefaultModality        = "CT"
	DefaultInstitutionName = "General Hospital"
	DefaultPatientName     = "Doe^Jane"
)

// File is an in-memory DICOM file under construction
type File struct {
	TransferSyntax *transfer.Syntax

	ds        *dataset.Dataset
	pixels    []byte
	fragments [][]byte
	offsets   []uint32
}

// New returns a file with SOP identification and the default metadata but
// no image attributes.
func New() *File {
	f := &File{
		TransferSyntax: transfer.ExplicitVRLittleEndian,
		ds:             dataset.New(),
	}
	f.SetString(tag.SOPClassUID, vr.UI, secondaryCaptureSOPClass)
	f.SetString(tag.SOPInstanceUID, vr.UI, sopInstanceUID)
	f.SetString(tag.StudyDate, vr.DA, DefaultStudyDate)
	f.SetString(tag.Modality, vr.CS, DefaultModality)
	f.SetString(tag.InstitutionName, vr.LO, DefaultInstitutionName)
	f.SetString(tag.PatientName, vr.PN, DefaultPatientName)
	return f
}

// Gray8 returns a single-frame MONOCHROME2 8-bit image
func Gray8(width, height int, pixels []byte) *File {
	f := New()
	f.setImage(width, height, 1, 8, 8, false, "MONOCHROME2")
	f.pixels = pixels
	return f
}

// Gray16 returns a single-frame MONOCHROME2 image with 16 bits allocated.
// Samples are written little endian.
func Gray16(width, height, bitsStored int, signed bool, samples []uint16) *File {
	f := New()
	f.setImage(width, height, 1, 16, bitsStored, signed, "MONOCHROME2")
	f.pixels = Words(samples)
	return f
}

// RGB8 returns a single-frame RGB image with interleaved samples
func RGB8(width, height int, pixels []byte) *File {
	f := New()
	f.setImage(width, height, 3, 8, 8, false, "RGB")
	f.SetUint16(tag.PlanarConfiguration, 0)
	f.pixels = pixels
	return f
}

// Words packs samples little endian
func Words(samples []uint16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], s)
	}
	return out
}

func (f *File) setImage(width, height, samples, allocated, stored int, signed bool, photometric string) {
	pr := uint16(0)
	if signed {
		pr = 1
	}
	f.SetUint16(tag.Rows, uint16(height))
	f.SetUint16(tag.Columns, uint16(width))
	f.SetUint16(tag.SamplesPerPixel, uint16(samples))
	f.SetUint16(tag.BitsAllocated, uint16(allocated))
	f.SetUint16(tag.BitsStored, uint16(stored))
	f.SetUint16(tag.HighBit, uint16(stored-1))
	f.SetUint16(tag.PixelRepresentation, pr)
	f.SetString(tag.PhotometricInterpretation, vr.CS, photometric)
}

// SetString sets a text element. A backslash separates multiple values.
// Odd-length values are padded with a space, or a NUL for UI.
func (f *File) SetString(t *tag.Tag, v *vr.VR, value string) *File {
	if v == vr.UI || len(value)%2 == 0 {
		f.set(element.NewString(t, v, strings.Split(value, `\`)))
		return f
	}
	f.set(element.NewStringFromBuffer(t, v, buffer.NewMemory([]byte(value+" ")), nil))
	return f
}

// SetUint16 sets a US element
func (f *File) SetUint16(t *tag.Tag, v uint16) *File {
	f.set(element.NewUnsignedShort(t, []uint16{v}))
	return f
}

func (f *File) set(elem element.Element) {
	if err := f.ds.AddOrUpdate(elem); err != nil {
		panic(err)
	}
}

// Delete removes an element
func (f *File) Delete(t *tag.Tag) *File {
	f.ds.Remove(t)
	return f
}

// SetPixels replaces the native pixel data
func (f *File) SetPixels(pixels []byte) *File {
	f.pixels = pixels
	f.fragments = nil
	f.offsets = nil
	return f
}

// Encapsulate switches the file to a compressed transfer syntax with one
// fragment item per argument. The writer adds a basic offset table with an
// entry per fragment.
func (f *File) Encapsulate(ts *transfer.Syntax, fragments ...[]byte) *File {
	f.TransferSyntax = ts
	f.fragments = fragments
	f.offsets = nil
	f.pixels = nil
	return f
}

// RLE compresses the native pixel data with go-dicom's RLE Lossless codec
func (f *File) RLE(t testing.TB) *File {
	t.Helper()
	out, err := gocodec.NewTranscoder(f.TransferSyntax, transfer.RLELossless).Transcode(f.Dataset())
	if err != nil {
		t.Fatalf("rle encode: %v", err)
	}
	elem, ok := out.Get(tag.PixelData)
	if !ok {
		t.Fatal("rle encode: no pixel data")
	}
	var fs *element.FragmentSequence
	switch v := elem.(type) {
	case *element.OtherByteFragment:
		fs = v.FragmentSequence
	case *element.OtherWordFragment:
		fs = v.FragmentSequence
	default:
		t.Fatalf("rle encode: unexpected %T", elem)
	}
	frags := make([][]byte, 0, fs.FragmentCount())
	for _, b := range fs.Fragments() {
		frags = append(frags, b.Data())
	}
	return f.Encapsulate(transfer.RLELossless, frags...)
}

// WithoutPixels drops the pixel data element
func (f *File) WithoutPixels() *File {
	f.pixels = nil
	f.fragments = nil
	f.offsets = nil
	return f
}

// Dataset returns a copy of the dataset including its pixel data
func (f *File) Dataset() *dataset.Dataset {
	ds := f.ds.Clone()
	switch {
	case f.fragments != nil:
		frag := element.NewOtherByteFragment(tag.PixelData)
		for _, b := range f.fragments {
			frag.AddFragment(buffer.NewMemory(b))
		}
		if f.offsets != nil {
			frag.SetOffsetTable(f.offsets)
		}
		_ = ds.AddOrUpdate(frag)
	case f.pixels != nil:
		value := f.pixels
		if len(value)%2 == 1 {
			value = append(append([]byte(nil), value...), 0x00)
		}
		if allocated, err := f.ds.GetUInt16(tag.BitsAllocated, 0); err == nil && allocated > 8 {
			_ = ds.AddOrUpdate(element.NewOtherWord(tag.PixelData, value))
		} else {
			_ = ds.AddOrUpdate(element.NewOtherByte(tag.PixelData, value))
		}
	}
	return ds
}

// Write stores the file as name under dir and returns its path
func (f *File) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := writer.WriteFile(path, f.Dataset(), writer.WithTransferSyntax(f.TransferSyntax)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
