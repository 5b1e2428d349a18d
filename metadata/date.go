package metadata

import (
	"fmt"
	"strings"
)

// FormatDate converts a DICOM DA value (YYYYMMDD) to YYYY-MM-DD. Trailing
// spaces and NULs are trimmed first; the rest must be exactly eight ASCII
// digits. Calendar validity is not checked.
func FormatDate(raw string) (string, error) {
	s := strings.TrimRight(raw, " \x00")
	if len(s) != 8 {
		return "", fmt.Errorf("%w: %q has %d characters", ErrInvalidDate, raw, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, raw)
		}
	}
	return s[0:4] + "-" + s[4:6] + "-" + s[6:8], nil
}
