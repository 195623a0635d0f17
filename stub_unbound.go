//go:build unbound && cgo

package aresdriver

import (
	"github.com/astracat-corp/aresdriver/internal/asyncstub"
	"github.com/astracat-corp/aresdriver/internal/stubunbound"
)

// newStub, under the unbound,cgo build tags, links the DNSSEC-validating
// libunbound backend instead of the pure-Go fallback.
var newStub StubFactory = func() (Stub, error) {
	ex, err := stubunbound.New()
	if err != nil {
		return nil, err
	}
	bridge, err := asyncstub.New(ex)
	if err != nil {
		return nil, err
	}
	return newStubAdapter(bridge), nil
}
