package tax

import "errors"

var (
	// ErrInvalidRate indicates a supplied rate outside [0,100] or non-finite.
	ErrInvalidRate = errors.New("tax rate must be between 0 and 100")
	// ErrInvalidInput indicates a negative or non-finite amount.
	ErrInvalidInput = errors.New("amount must be non-negative and finite")
	// ErrSettingsMissing indicates global tax settings were never configured.
	ErrSettingsMissing = errors.New("global tax settings not configured")
)
