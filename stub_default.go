//go:build !unbound

package aresdriver

import (
	"github.com/astracat-corp/aresdriver/internal/asyncstub"
	"github.com/astracat-corp/aresdriver/internal/stubfallback"
)

// newStub is the cgo-free default: github.com/miekg/dns against the
// system resolver, bridged into the fd-driven Stub contract. Build with
// -tags unbound,cgo to link the DNSSEC-validating libunbound backend
// instead (see stub_unbound.go).
var newStub StubFactory = func() (Stub, error) {
	ex, err := stubfallback.New()
	if err != nil {
		return nil, err
	}
	bridge, err := asyncstub.New(ex)
	if err != nil {
		return nil, err
	}
	return newStubAdapter(bridge), nil
}
