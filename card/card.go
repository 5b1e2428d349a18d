// Package card converts one DICOM file into a display record.
package card

import (
	"errors"
	"path/filepath"
	"strings"

	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"

	"github.com/cocosip/go-dicom-cards/container"
	"github.com/cocosip/go-dicom-cards/metadata"
	"github.com/cocosip/go-dicom-cards/normalize"
	"github.com/cocosip/go-dicom-cards/payload"
	"github.com/cocosip/go-dicom-cards/pixel"

	// Decoders added to go-dicom's global registry, which already
	// carries the native syntaxes and RLE
	_ "github.com/cocosip/go-dicom-cards/jpeg/baseline"
	_ "github.com/cocosip/go-dicom-cards/jpeg/extended"
	_ "github.com/cocosip/go-dicom-cards/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-cards/jpegls/lossless"
)

// Record is one successfully converted file. It is either fully populated
// or not produced.
type Record struct {
	FilePath        string `json:"filePath"`
	FileName        string `json:"fileName"`
	ImgSrc          string `json:"imgSrc"`
	StudyDate       string `json:"studyDate"`
	Modality        string `json:"modality"`
	InstitutionName string `json:"institutionName"`
	PatientName     string `json:"patientName"`
}

// Converter runs the single-file pipeline. The zero value uses go-dicom's
// global codec registry and default payload options.
type Converter struct {
	Registry  *gocodec.Registry
	Container []container.Option
	Payload   []payload.Option
}

// Convert runs the pipeline with a zero Converter
func Convert(path string) (*Record, error) {
	var c Converter
	return c.Convert(path)
}

// Convert parses path, decodes and normalizes frame zero, encodes the
// payload and extracts the metadata. Any failure yields no Record.
func (c *Converter) Convert(path string) (*Record, error) {
	f, err := container.Open(path, c.Container...)
	if err != nil {
		return nil, err
	}

	fr, err := pixel.Decode(f, c.Registry)
	if err != nil {
		return nil, err
	}
	img, err := normalize.Gray(fr)
	if err != nil {
		return nil, err
	}
	src, err := payload.Encode(img, c.Payload...)
	if err != nil {
		var ee *payload.EncodeError
		if errors.As(err, &ee) && ee.Path == "" {
			ee.Path = path
		}
		return nil, err
	}

	fields, err := metadata.Extract(f)
	if err != nil {
		return nil, err
	}

	return &Record{
		FilePath:        path,
		FileName:        FileName(path),
		ImgSrc:          src,
		StudyDate:       fields.StudyDate,
		Modality:        fields.Modality,
		InstitutionName: fields.InstitutionName,
		PatientName:     fields.PatientName,
	}, nil
}

// FileName returns the base name of path without its extension. A name
// whose only dot is the leading one has no extension.
func FileName(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return base
	}
	return base[:i]
}

// Error kinds reported by Kind
const (
	KindContainerParse = "ContainerParseError"
	KindPixelDecode    = "PixelDecodeError"
	KindNormalize      = "NormalizeError"
	KindEncode         = "EncodeError"
	KindMetadata       = "MetadataError"
	KindUnknown        = "UnknownError"
)

// Kind names the pipeline stage that produced err
func Kind(err error) string {
	var (
		pe *container.ParseError
		de *pixel.DecodeError
		ne *normalize.Error
		ee *payload.EncodeError
		me *metadata.Error
	)
	switch {
	case errors.As(err, &pe):
		return KindContainerParse
	case errors.As(err, &de):
		return KindPixelDecode
	case errors.As(err, &ne):
		return KindNormalize
	case errors.As(err, &ee):
		return KindEncode
	case errors.As(err, &me):
		return KindMetadata
	}
	return KindUnknown
}
