// Package errors tests for structured error types.
package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// RikuganError Construction Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	re := New("TEST_ERROR", CategoryConfig, "test message")

	if re.Code != "TEST_ERROR" {
		t.Errorf("expected Code 'TEST_ERROR', got %q", re.Code)
	}
	if re.Category != CategoryConfig {
		t.Errorf("expected Category CategoryConfig, got %v", re.Category)
	}
	if re.Message != "test message" {
		t.Errorf("expected Message 'test message', got %q", re.Message)
	}
	if re.Context == nil {
		t.Error("expected Context map to be initialized, got nil")
	}
	if re.Cause != nil {
		t.Errorf("expected Cause to be nil, got %v", re.Cause)
	}
}

func TestRikuganError_Error(t *testing.T) {
	tests := []struct {
		name     string
		setup    func() *RikuganError
		expected string
	}{
		{
			name: "without cause",
			setup: func() *RikuganError {
				return New(ErrNoActiveModel, CategorySession, "no model loaded")
			},
			expected: "NO_ACTIVE_MODEL: no model loaded",
		},
		{
			name: "with cause",
			setup: func() *RikuganError {
				return New(ErrModelLoadFailed, CategoryModel, "failed to load model").
					WithCause(fmt.Errorf("out of memory"))
			},
			expected: "MODEL_LOAD_FAILED: failed to load model: out of memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := tt.setup()
			if got := re.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Builder Pattern Tests
// -----------------------------------------------------------------------------

func TestWithContext(t *testing.T) {
	re := New("TEST", CategoryModel, "test").
		WithContext("model", "synthetic").
		WithContext("layers", "4")

	if re.Context["model"] != "synthetic" {
		t.Errorf("expected model context 'synthetic', got %q", re.Context["model"])
	}
	if re.Context["layers"] != "4" {
		t.Errorf("expected layers context '4', got %q", re.Context["layers"])
	}
}

func TestWithContext_NilMap(t *testing.T) {
	re := &RikuganError{
		Code:     "TEST",
		Category: CategoryConfig,
		Message:  "test",
		Context:  nil,
	}
	re.WithContext("key", "value")

	if re.Context == nil {
		t.Error("expected Context to be initialized")
	}
	if re.Context["key"] != "value" {
		t.Errorf("expected key 'value', got %q", re.Context["key"])
	}
}

func TestWithCause(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	re := New("TEST", CategoryIO, "test").WithCause(cause)

	if re.Cause != cause {
		t.Errorf("expected Cause to be set, got %v", re.Cause)
	}
}

// -----------------------------------------------------------------------------
// Unwrap and Error Chain Tests
// -----------------------------------------------------------------------------

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("original error")
	re := New("TEST", CategoryIO, "wrapper").WithCause(cause)

	if re.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", re.Unwrap(), cause)
	}
}

func TestUnwrap_NilCause(t *testing.T) {
	re := New("TEST", CategoryIO, "no cause")

	if re.Unwrap() != nil {
		t.Error("expected Unwrap() to return nil for error without cause")
	}
}

func TestIs_SameCode(t *testing.T) {
	err1 := New(ErrModelNotFound, CategoryModel, "model not found")
	err2 := New(ErrModelNotFound, CategoryModel, "different message")

	if !err1.Is(err2) {
		t.Error("expected Is() to return true for same error code")
	}
}

func TestIs_DifferentCode(t *testing.T) {
	err1 := New(ErrModelNotFound, CategoryModel, "model not found")
	err2 := New(ErrModelLoadFailed, CategoryModel, "load failed")

	if err1.Is(err2) {
		t.Error("expected Is() to return false for different error codes")
	}
}

func TestErrorsIs_WithWrapping(t *testing.T) {
	target := New(ErrIOFileNotFound, CategoryIO, "file not found")
	wrapped := New(ErrConfigReadFailed, CategoryConfig, "failed to load config").
		WithCause(target)

	if !errors.Is(wrapped, target) {
		t.Error("expected errors.Is() to find wrapped RikuganError")
	}
}

// -----------------------------------------------------------------------------
// Helper and Utility Function Tests
// -----------------------------------------------------------------------------

func TestHasContext(t *testing.T) {
	with := New("TEST", CategoryConfig, "test").WithContext("key", "value")
	without := New("TEST", CategoryConfig, "test")

	if !with.HasContext() {
		t.Error("HasContext() = false, want true")
	}
	if without.HasContext() {
		t.Error("HasContext() = true, want false")
	}
}

func TestContextString(t *testing.T) {
	re := New("TEST", CategoryConfig, "test").
		WithContext("file", "/etc/rikugan/config.yaml")

	if got := re.ContextString(); got != `file="/etc/rikugan/config.yaml"` {
		t.Errorf("ContextString() = %q", got)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("original error")
	re := Wrap(cause, "WRAPPED_ERROR", CategoryIO, "wrapped message")

	if re.Cause != cause {
		t.Error("expected cause to be wrapped")
	}
	if re.Code != "WRAPPED_ERROR" {
		t.Errorf("expected code 'WRAPPED_ERROR', got %q", re.Code)
	}
	if re.Category != CategoryIO {
		t.Errorf("expected CategoryIO, got %v", re.Category)
	}
}

func TestAsRikuganError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantOK   bool
		wantCode string
	}{
		{
			name:     "RikuganError",
			err:      New("TEST", CategoryConfig, "test"),
			wantOK:   true,
			wantCode: "TEST",
		},
		{
			name:   "standard error",
			err:    fmt.Errorf("standard error"),
			wantOK: false,
		},
		{
			name:   "nil error",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, ok := AsRikuganError(tt.err)
			if ok != tt.wantOK {
				t.Errorf("AsRikuganError() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && re.Code != tt.wantCode {
				t.Errorf("AsRikuganError() code = %q, want %q", re.Code, tt.wantCode)
			}
		})
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(New("TEST", CategoryModel, "test"), CategoryModel) {
		t.Error("IsCategory() = false for matching category")
	}
	if IsCategory(New("TEST", CategoryModel, "test"), CategoryStream) {
		t.Error("IsCategory() = true for non-matching category")
	}
	if IsCategory(fmt.Errorf("standard"), CategoryModel) {
		t.Error("IsCategory() = true for standard error")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(New(ErrNoActiveModel, CategorySession, "test"), ErrNoActiveModel) {
		t.Error("IsCode() = false for matching code")
	}
	if IsCode(New(ErrNoActiveModel, CategorySession, "test"), ErrSessionBusy) {
		t.Error("IsCode() = true for non-matching code")
	}
	if IsCode(fmt.Errorf("standard"), ErrNoActiveModel) {
		t.Error("IsCode() = true for standard error")
	}
}

// -----------------------------------------------------------------------------
// Category-Specific Constructor Tests
// -----------------------------------------------------------------------------

func TestCategoryConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RikuganError
		category Category
	}{
		{"config", ConfigError(ErrConfigNotFound, "missing"), CategoryConfig},
		{"model", ModelError(ErrModelNotFound, "missing"), CategoryModel},
		{"session", SessionError(ErrNoActiveModel, "empty slot"), CategorySession},
		{"stream", StreamError(ErrStreamWriteFailed, "send failed"), CategoryStream},
		{"validation", ValidationError(ErrValidationRequired, "prompt missing"), CategoryValidation},
		{"io", IOError(ErrIOReadFailed, "read failed"), CategoryIO},
		{"internal", InternalError(ErrInternalError, "boom"), CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("category = %v, want %v", tt.err.Category, tt.category)
			}
		})
	}
}

func TestModelErrorf(t *testing.T) {
	re := ModelErrorf(ErrModelNotFound, "model %q not found", "qwen3-0.6b")
	if re.Message != `model "qwen3-0.6b" not found` {
		t.Errorf("unexpected message: %q", re.Message)
	}
}

func TestWrapHelpers(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name     string
		err      *RikuganError
		category Category
	}{
		{"config", WrapConfig(cause, ErrConfigParseFailed, "parse failed"), CategoryConfig},
		{"model", WrapModel(cause, ErrModelLoadFailed, "load failed"), CategoryModel},
		{"stream", WrapStream(cause, ErrStreamWriteFailed, "send failed"), CategoryStream},
		{"io", WrapIO(cause, ErrIOWriteFailed, "write failed"), CategoryIO},
		{"internal", WrapInternal(cause, ErrInternalError, "unexpected"), CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("category = %v, want %v", tt.err.Category, tt.category)
			}
			if tt.err.Cause != cause {
				t.Error("cause not preserved")
			}
		})
	}
}
