package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("unique constraint failed")
	err := NewConflict("this request already has an active claim").WithInternal(internal)

	if err.Error() != "this request already has an active claim: unique constraint failed" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := NewInvalidOperation("cannot transition from completed to cancelled")

	if !stdErrors.Is(err, ErrInvalidOperation) {
		t.Fatal("expected derived error to match its sentinel")
	}
	if stdErrors.Is(err, ErrConflict) {
		t.Fatal("expected error not to match a different code")
	}

	wrapped := fmt.Errorf("update status: %w", err)
	if !stdErrors.Is(wrapped, ErrInvalidOperation) {
		t.Fatal("expected match to survive fmt wrapping")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != CodeInternal {
		t.Fatalf("expected internal error code, got %s", out.Code)
	}
	if out.Internal != raw {
		t.Fatal("expected original error to be preserved")
	}

	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestTaxonomyStatusCodes(t *testing.T) {
	cases := map[int]*AppError{
		http.StatusNotFound:            ErrNotFound,
		http.StatusForbidden:           ErrForbidden,
		http.StatusConflict:            NewConflict("x"),
		http.StatusBadRequest:          NewInvalidOperation("x"),
		http.StatusUnprocessableEntity: NewValidation("x"),
	}

	for status, err := range cases {
		if err.StatusCode != status {
			t.Fatalf("expected %s to map to %d, got %d", err.Code, status, err.StatusCode)
		}
	}
}
