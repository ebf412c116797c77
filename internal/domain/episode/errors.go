package episode

import apperrors "github.com/yanqian/fevertrack/pkg/errors"

// Error codes surfaced by the engine. Callers branch on them with apperrors.IsCode.
const (
	CodeValidation   = "validation_error"
	CodeInvalidState = "invalid_state"
	CodeNotFound     = "not_found"
)

func validationError(format string, args ...any) error {
	return apperrors.Newf(CodeValidation, format, args...)
}

func invalidStateError(format string, args ...any) error {
	return apperrors.Newf(CodeInvalidState, format, args...)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return apperrors.IsCode(err, CodeValidation) }

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool { return apperrors.IsCode(err, CodeInvalidState) }
