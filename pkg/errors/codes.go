// Package errors provides error code constants for Rikugan.
// Error codes are organized by category for consistent handling and lookup.
package errors

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	// Usually a YAML syntax error or invalid structure.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigInitFailed indicates config initialization failed.
	ErrConfigInitFailed = "CONFIG_INIT_FAILED"

	// ErrConfigReadFailed indicates the config file could not be read.
	ErrConfigReadFailed = "CONFIG_READ_FAILED"
)

// -----------------------------------------------------------------------------
// Model Error Codes
// -----------------------------------------------------------------------------
// Use these codes for model resolution, loading, and inference errors.

const (
	// ErrModelNotFound indicates the requested model is not registered.
	ErrModelNotFound = "MODEL_NOT_FOUND"

	// ErrModelAlreadyRegistered indicates a model with this identifier exists.
	ErrModelAlreadyRegistered = "MODEL_ALREADY_REGISTERED"

	// ErrModelAliasCollision indicates an alias maps to two different models.
	ErrModelAliasCollision = "MODEL_ALIAS_COLLISION"

	// ErrModelLoadFailed indicates the model adapter failed to load.
	ErrModelLoadFailed = "MODEL_LOAD_FAILED"

	// ErrModelGenerateFailed indicates text generation failed.
	ErrModelGenerateFailed = "MODEL_GENERATE_FAILED"

	// ErrModelForwardFailed indicates the instrumented forward pass failed.
	ErrModelForwardFailed = "MODEL_FORWARD_FAILED"
)

// -----------------------------------------------------------------------------
// Session Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrNoActiveModel indicates no model is loaded in the session slot.
	ErrNoActiveModel = "NO_ACTIVE_MODEL"

	// ErrSessionBusy indicates a turn is already in flight on this connection.
	ErrSessionBusy = "SESSION_BUSY"
)

// -----------------------------------------------------------------------------
// Streaming Error Codes
// -----------------------------------------------------------------------------
// Use these codes for WebSocket turn and frame delivery errors.

const (
	// ErrStreamInvalidJSON indicates an inbound frame was not valid JSON.
	ErrStreamInvalidJSON = "STREAM_INVALID_JSON"

	// ErrStreamUnknownType indicates an unrecognized message type.
	ErrStreamUnknownType = "STREAM_UNKNOWN_TYPE"

	// ErrStreamWriteFailed indicates a frame could not be delivered.
	ErrStreamWriteFailed = "STREAM_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrValidationRequired indicates a required field is missing.
	ErrValidationRequired = "VALIDATION_REQUIRED"

	// ErrValidationInvalidValue indicates a value is invalid.
	ErrValidationInvalidValue = "VALIDATION_INVALID_VALUE"

	// ErrValidationOutOfRange indicates a value is outside allowed range.
	ErrValidationOutOfRange = "VALIDATION_OUT_OF_RANGE"
)

// -----------------------------------------------------------------------------
// I/O Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrIOReadFailed indicates a file read operation failed.
	ErrIOReadFailed = "IO_READ_FAILED"

	// ErrIOWriteFailed indicates a file write operation failed.
	ErrIOWriteFailed = "IO_WRITE_FAILED"

	// ErrIOFileNotFound indicates a file was not found.
	ErrIOFileNotFound = "IO_FILE_NOT_FOUND"
)

// -----------------------------------------------------------------------------
// Trace Error Codes
// -----------------------------------------------------------------------------
// Use these codes for the turn trace recorder.

const (
	// ErrTraceOpenFailed indicates the trace database could not be opened.
	ErrTraceOpenFailed = "TRACE_OPEN_FAILED"

	// ErrTraceWriteFailed indicates a trace row could not be inserted.
	ErrTraceWriteFailed = "TRACE_WRITE_FAILED"

	// ErrTraceExportFailed indicates the CSV export failed.
	ErrTraceExportFailed = "TRACE_EXPORT_FAILED"
)

// -----------------------------------------------------------------------------
// Internal Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrInternalError indicates an unexpected internal error.
	ErrInternalError = "INTERNAL_ERROR"

	// ErrInternalPanic indicates a panic was recovered.
	ErrInternalPanic = "INTERNAL_PANIC"
)

// -----------------------------------------------------------------------------
// Error Code Lookup Helpers
// -----------------------------------------------------------------------------

// CodeCategory returns the category for a given error code.
// Returns CategoryInternal if the code is not recognized.
func CodeCategory(code string) Category {
	switch code {
	case ErrConfigNotFound, ErrConfigParseFailed, ErrConfigInvalid,
		ErrConfigInitFailed, ErrConfigReadFailed:
		return CategoryConfig

	case ErrModelNotFound, ErrModelAlreadyRegistered, ErrModelAliasCollision,
		ErrModelLoadFailed, ErrModelGenerateFailed, ErrModelForwardFailed:
		return CategoryModel

	case ErrNoActiveModel, ErrSessionBusy:
		return CategorySession

	case ErrStreamInvalidJSON, ErrStreamUnknownType, ErrStreamWriteFailed:
		return CategoryStream

	case ErrValidationRequired, ErrValidationInvalidValue, ErrValidationOutOfRange:
		return CategoryValidation

	case ErrIOReadFailed, ErrIOWriteFailed, ErrIOFileNotFound,
		ErrTraceOpenFailed, ErrTraceWriteFailed, ErrTraceExportFailed:
		return CategoryIO

	case ErrInternalError, ErrInternalPanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// IsModelCode returns true if the code is a model error code.
func IsModelCode(code string) bool {
	return CodeCategory(code) == CategoryModel
}

// IsSessionCode returns true if the code is a session error code.
func IsSessionCode(code string) bool {
	return CodeCategory(code) == CategorySession
}

// IsStreamCode returns true if the code is a streaming error code.
func IsStreamCode(code string) bool {
	return CodeCategory(code) == CategoryStream
}
