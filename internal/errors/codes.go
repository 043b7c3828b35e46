// Package errors provides structured error handling for kbindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (data folder, storage artifact, metadata db)
//   - 4XX: Validation errors
//   - 5XX: State and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates record and input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryState indicates generation state errors (busy, bad transition).
	CategoryState Category = "STATE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeDataDirNotFound = "ERR_201_DATA_DIR_NOT_FOUND"
	ErrCodeStorageMissing  = "ERR_202_STORAGE_MISSING"
	ErrCodeMetadataIO      = "ERR_203_METADATA_IO"

	// Validation errors (400-499)
	ErrCodeInvalidRecord    = "ERR_401_INVALID_RECORD"
	ErrCodeUnknownIndexType = "ERR_402_UNKNOWN_INDEX_TYPE"
	ErrCodeInvalidInput     = "ERR_403_INVALID_INPUT"

	// State and internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeGenerationFailed = "ERR_502_GENERATION_FAILED"
	ErrCodeRunActive        = "ERR_503_RUN_ACTIVE"
	ErrCodeNotResettable    = "ERR_504_NOT_RESETTABLE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract the leading digit of the numeric portion (e.g., "1" from "ERR_101_...")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	case '5':
		if code == ErrCodeRunActive || code == ErrCodeNotResettable {
			return CategoryState
		}
		return CategoryInternal
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Busy and reset misuse are recoverable by the caller; config problems abort.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigNotFound, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeInvalidRecord, ErrCodeRunActive, ErrCodeNotResettable:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRunActive, ErrCodeMetadataIO:
		return true
	default:
		return false
	}
}
