package codec

import (
	"fmt"
	"sort"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	gocodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
)

// Register adds c to go-dicom's global registry under each syntax, or
// under c.TransferSyntax() when none is given. Backends call it from init.
func Register(c gocodec.Codec, syntaxes ...*transfer.Syntax) {
	RegisterIn(gocodec.GetGlobalRegistry(), c, syntaxes...)
}

// RegisterIn is Register for a private registry
func RegisterIn(reg *gocodec.Registry, c gocodec.Codec, syntaxes ...*transfer.Syntax) {
	if len(syntaxes) == 0 {
		syntaxes = []*transfer.Syntax{c.TransferSyntax()}
	}
	for _, ts := range syntaxes {
		reg.RegisterCodec(ts, c)
	}
}

// Lookup returns the codec registered for ts. A nil registry means the
// global one.
func Lookup(reg *gocodec.Registry, ts *transfer.Syntax) (gocodec.Codec, error) {
	if reg == nil {
		reg = gocodec.GetGlobalRegistry()
	}
	c, ok := reg.GetCodec(ts)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrCodecNotFound, ts.UID().UID())
	}
	return c, nil
}

// Supported returns the transfer syntax UIDs registered in reg, sorted.
// A nil registry means the global one.
func Supported(reg *gocodec.Registry) []string {
	if reg == nil {
		reg = gocodec.GetGlobalRegistry()
	}
	uids := reg.ListCodecs()
	sort.Strings(uids)
	return uids
}
