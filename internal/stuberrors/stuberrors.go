// Package stuberrors holds the one sentinel error shared between the root
// aresdriver package and the Stub backends under internal/, so a backend
// can report "definitively no such record" without importing the root
// package (which would create an import cycle, since the root package's
// stub_default.go/stub_unbound.go import the backends).
package stuberrors

import "errors"

// ErrNotFound is wrapped by a backend's returned error when the upstream
// server has said, unambiguously, that the requested record does not
// exist (e.g. NXDOMAIN for a hostname lookup, an empty answer section with
// no applicable CNAME chain for SRV/TXT).
var ErrNotFound = errors.New("aresdriver: no such record")
