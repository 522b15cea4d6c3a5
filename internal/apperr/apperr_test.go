package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsThroughFmtErrorf(t *testing.T) {
	base := New(KindNotFound, errors.New("room: unknown room ABC123"))
	wrapped := fmt.Errorf("handler: %w", base)

	kind, ok := KindOf(wrapped)
	if !ok {
		t.Fatal("expected KindOf to find a Kinded error in the chain")
	}
	if kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", kind)
	}
}

func TestKindOfReportsFalseForPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("expected KindOf to report false for an error with no Kind")
	}
}

func TestNewWithNilErrorReturnsNil(t *testing.T) {
	if New(KindFatal, nil) != nil {
		t.Fatal("expected New(kind, nil) to return nil")
	}
}
