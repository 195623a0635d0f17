package aresdriver

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Unknown:          "Unknown",
		InvalidArgument:  "InvalidArgument",
		DeadlineExceeded: "DeadlineExceeded",
		Cancelled:        "Cancelled",
		NotFound:         "NotFound",
		Kind(99):         "Unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestErrorIs(t *testing.T) {
	e1 := deadlineExceeded()
	e2 := deadlineExceeded()
	if !errors.Is(e1, e2) {
		t.Error("two DeadlineExceeded errors should match via errors.Is")
	}
	if errors.Is(e1, cancelledError()) {
		t.Error("DeadlineExceeded should not match Cancelled")
	}
}

func TestErrorUnwrap(t *testing.T) {
	wrapped := errors.New("boom")
	e := wrapStubError("A", "example.com", wrapped)
	if !errors.Is(e, wrapped) {
		t.Error("wrapStubError should preserve the wrapped error for errors.Is")
	}
	if e.Error() == "" {
		t.Error("Error() should not be empty")
	}
}

func TestWrapStubErrorMessage(t *testing.T) {
	err := wrapStubError("A", "example.com", errors.New("timeout"))
	msg := err.Error()
	if !strings.Contains(msg, "qtype=A") || !strings.Contains(msg, "name=example.com") {
		t.Errorf("Error() = %q, want it to contain qtype and name", msg)
	}
}

func TestClassifyStubErrorNotFound(t *testing.T) {
	wrapped := fmt.Errorf("NXDOMAIN: %w", ErrStubNotFound)
	err := classifyStubError("SRV", "example.com", wrapped)
	if err.Kind != NotFound {
		t.Errorf("Kind = %v, want NotFound", err.Kind)
	}
}

func TestClassifyStubErrorUnknown(t *testing.T) {
	err := classifyStubError("TXT", "example.com", errors.New("network unreachable"))
	if err.Kind != Unknown {
		t.Errorf("Kind = %v, want Unknown", err.Kind)
	}
}
