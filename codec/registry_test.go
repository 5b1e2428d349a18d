package codec_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"

	"github.com/cocosip/go-dicom-cards/codec"
	_ "github.com/cocosip/go-dicom-cards/jpeg/baseline"
	_ "github.com/cocosip/go-dicom-cards/jpeg/extended"
	_ "github.com/cocosip/go-dicom-cards/jpeg/lossless"
	_ "github.com/cocosip/go-dicom-cards/jpegls/lossless"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		ts      *transfer.Syntax
		wantErr error
	}{
		{"explicit little endian", transfer.ExplicitVRLittleEndian, nil},
		{"implicit little endian", transfer.ImplicitVRLittleEndian, nil},
		{"RLE", transfer.RLELossless, nil},
		{"JPEG baseline", transfer.JPEGBaseline8Bit, nil},
		{"JPEG extended", transfer.JPEGExtended12Bit, nil},
		{"JPEG lossless", transfer.JPEGLossless, nil},
		{"JPEG lossless SV1", transfer.JPEGLosslessSV1, nil},
		{"JPEG-LS lossless", transfer.JPEGLSLossless, nil},
		{"MPEG-2", transfer.MPEG2, codec.ErrCodecNotFound},
		{"JPEG 2000", transfer.JPEG2000, codec.ErrCodecNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := codec.Lookup(nil, tt.ts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Lookup error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if c.TransferSyntax() != tt.ts {
				t.Errorf("TransferSyntax = %s, want %s", c.TransferSyntax().UID().UID(), tt.ts.UID().UID())
			}
		})
	}
}

func TestRegisterIn(t *testing.T) {
	reg := gocodec.NewCodecRegistry()
	if _, err := codec.Lookup(reg, transfer.JPEGBaseline8Bit); !errors.Is(err, codec.ErrCodecNotFound) {
		t.Fatalf("empty registry lookup error = %v, want %v", err, codec.ErrCodecNotFound)
	}

	global, err := codec.Lookup(nil, transfer.JPEGBaseline8Bit)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	codec.RegisterIn(reg, global)
	codec.RegisterIn(reg, global, transfer.JPEGExtended12Bit, transfer.JPEGLossless)

	got := codec.Supported(reg)
	want := []string{
		transfer.JPEGBaseline8Bit.UID().UID(),
		transfer.JPEGExtended12Bit.UID().UID(),
		transfer.JPEGLossless.UID().UID(),
	}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("Supported = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Supported[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if _, err := codec.Lookup(reg, transfer.RLELossless); !errors.Is(err, codec.ErrCodecNotFound) {
		t.Errorf("private registry sees global RLE codec: %v", err)
	}
}

func TestSupportedSorted(t *testing.T) {
	uids := codec.Supported(nil)
	if !sort.StringsAreSorted(uids) {
		t.Errorf("Supported(nil) not sorted: %v", uids)
	}
	found := false
	for _, uid := range uids {
		if uid == transfer.JPEGLSLossless.UID().UID() {
			found = true
		}
	}
	if !found {
		t.Errorf("Supported(nil) = %v, missing JPEG-LS lossless", uids)
	}
}
