package errors

import (
	"strings"
	"testing"
)

func TestRecover_NoPanicReturnsNil(t *testing.T) {
	var err error
	func() {
		defer func() { err = Recover() }()
	}()
	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRecover_CapturesPanicValue(t *testing.T) {
	var err error
	func() {
		defer func() { err = Recover() }()
		panic("boom")
	}()

	if err == nil {
		t.Fatal("expected non-nil error after panic")
	}
	pe, ok := err.(*PanicError)
	if !ok {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if pe.Value != "boom" {
		t.Errorf("Value = %v, want boom", pe.Value)
	}
	if pe.Stacktrace == "" {
		t.Error("expected a non-empty stack trace")
	}
}

func TestPanicError_ErrorMessage(t *testing.T) {
	pe := &PanicError{Value: "oh no"}
	if !strings.Contains(pe.Error(), "oh no") {
		t.Errorf("Error() = %q, want it to contain %q", pe.Error(), "oh no")
	}
}
