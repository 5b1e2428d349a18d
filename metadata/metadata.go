// Package metadata extracts the descriptive fields shown on a card.
package metadata

import (
	"github.com/cocosip/go-dicom/pkg/dicom/tag"

	"github.com/cocosip/go-dicom-cards/container"
)

// Fields holds the card metadata of one file
type Fields struct {
	StudyDate       string // YYYY-MM-DD
	Modality        string
	InstitutionName string
	PatientName     string
}

// Extract reads Study Date, Modality, Institution Name and Patient Name.
// Every tag must be present; Institution Name and Patient Name may be empty.
func Extract(f *container.File) (*Fields, error) {
	read := func(t *tag.Tag, name string) (string, error) {
		v, ok := f.String(t)
		if !ok {
			return "", &Error{Path: f.Path, Tag: name, Err: ErrMissingTag}
		}
		return v, nil
	}

	rawDate, err := read(tag.StudyDate, "StudyDate")
	if err != nil {
		return nil, err
	}
	date, err := FormatDate(rawDate)
	if err != nil {
		return nil, &Error{Path: f.Path, Tag: "StudyDate", Err: err}
	}

	modality, err := read(tag.Modality, "Modality")
	if err != nil {
		return nil, err
	}
	institution, err := read(tag.InstitutionName, "InstitutionName")
	if err != nil {
		return nil, err
	}
	patient, err := read(tag.PatientName, "PatientName")
	if err != nil {
		return nil, err
	}

	return &Fields{
		StudyDate:       date,
		Modality:        modality,
		InstitutionName: institution,
		PatientName:     patient,
	}, nil
}
