// Package container opens DICOM Part 10 files and exposes the parsed dataset.
package container

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cocosip/go-dicom/pkg/dicom/dataset"
	"github.com/cocosip/go-dicom/pkg/dicom/element"
	"github.com/cocosip/go-dicom/pkg/dicom/parser"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
)

const (
	preambleSize = 128
	magic        = "DICM"
)

// DefaultLargeObjectSize is the largest element value read into memory
const DefaultLargeObjectSize uint32 = 100 * 1024 * 1024

// File is a parsed DICOM file
type File struct {
	Path           string
	Dataset        *dataset.Dataset
	TransferSyntax *transfer.Syntax
}

type options struct {
	largeObjectSize uint32
}

// Option configures Open
type Option func(*options)

// WithLargeObjectSize sets the largest element value the parser loads.
// Zero keeps the default.
func WithLargeObjectSize(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.largeObjectSize = n
		}
	}
}

// Open parses the file at path, pixel data included. The file handle is
// released before Open returns.
func Open(path string, opts ...Option) (*File, error) {
	o := options{largeObjectSize: DefaultLargeObjectSize}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ParseError{Path: path, Err: ErrIsDirectory}
	}
	if err := checkMagic(path); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	res, err := parser.ParseFile(path,
		parser.WithReadOption(parser.ReadAll),
		parser.WithLargeObjectSize(o.largeObjectSize),
	)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if res == nil || res.Dataset == nil {
		return nil, &ParseError{Path: path, Err: ErrEmptyDataset}
	}
	if res.TransferSyntax == nil {
		return nil, &ParseError{Path: path, Err: ErrNoTransferSyntax}
	}

	return &File{
		Path:           path,
		Dataset:        res.Dataset,
		TransferSyntax: res.TransferSyntax,
	}, nil
}

// checkMagic verifies the 128-byte preamble is followed by "DICM"
func checkMagic(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = fh.Close()
	}()

	header := make([]byte, preambleSize+len(magic))
	if _, err := io.ReadFull(fh, header); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPart10, err)
	}
	if string(header[preambleSize:]) != magic {
		return ErrNotPart10
	}
	return nil
}

// TransferSyntaxUID returns the UID of the dataset encoding
func (f *File) TransferSyntaxUID() string {
	return f.TransferSyntax.UID().UID()
}

// Has reports whether the element is present
func (f *File) Has(t *tag.Tag) bool {
	return f.Dataset.Contains(t)
}

// String returns the text value of an element with DICOM padding removed.
// ok is false when the element is absent. A present element whose value
// cannot be read as text yields "".
func (f *File) String(t *tag.Tag) (string, bool) {
	if !f.Has(t) {
		return "", false
	}
	s, ok := f.Dataset.GetString(t)
	if !ok {
		return "", true
	}
	return strings.TrimRight(s, " \x00"), true
}

// Uint16 returns the first US value, or def when the element is absent or
// not readable as US
func (f *File) Uint16(t *tag.Tag, def uint16) uint16 {
	v, err := f.Dataset.GetUInt16(t, 0)
	if err != nil {
		return def
	}
	return v
}

// Float returns the first value of a DS element
func (f *File) Float(t *tag.Tag) (float64, bool) {
	s, ok := f.String(t)
	if !ok {
		return 0, false
	}
	first, _, _ := strings.Cut(s, `\`)
	v, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int returns the first value of an IS element
func (f *File) Int(t *tag.Tag) (int, bool) {
	s, ok := f.String(t)
	if !ok {
		return 0, false
	}
	first, _, _ := strings.Cut(s, `\`)
	v, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, false
	}
	return v, true
}

// PixelData is the raw pixel data element. Native holds the stored bytes of
// every frame; encapsulated data carries its fragments and the basic offset
// table, which may be empty.
type PixelData struct {
	Native    []byte
	Fragments [][]byte
	Offsets   []uint32
}

// Encapsulated reports whether the element held fragments
func (p *PixelData) Encapsulated() bool {
	return p.Native == nil
}

// PixelData returns the pixel data element of the dataset
func (f *File) PixelData() (*PixelData, error) {
	el, ok := f.Dataset.Get(tag.PixelData)
	if !ok {
		return nil, ErrNoPixelData
	}

	p := &PixelData{}
	switch v := el.(type) {
	case *element.OtherByte:
		p.Native = v.GetData()
	case *element.OtherWord:
		p.Native = v.GetData()
	case *element.OtherByteFragment:
		p.Fragments, p.Offsets = fragmentData(v.FragmentSequence)
	case *element.OtherWordFragment:
		p.Fragments, p.Offsets = fragmentData(v.FragmentSequence)
	default:
		return nil, fmt.Errorf("%w: %T", ErrPixelDataType, el)
	}

	if len(p.Native) == 0 && len(p.Fragments) == 0 {
		return nil, ErrNoPixelData
	}
	return p, nil
}

func fragmentData(fs *element.FragmentSequence) ([][]byte, []uint32) {
	frags := fs.Fragments()
	out := make([][]byte, 0, len(frags))
	for _, frag := range frags {
		out = append(out, frag.Data())
	}
	return out, fs.OffsetTable()
}
