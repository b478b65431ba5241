package profile

import "errors"

var (
	// ErrInvalidTable indicates columns that cannot form a radial profile.
	ErrInvalidTable = errors.New("profile: invalid table")

	// ErrUnknownField indicates a column name with no matching Field.
	ErrUnknownField = errors.New("profile: unknown field")

	// ErrMissingColumn indicates a profile file without a required column.
	ErrMissingColumn = errors.New("profile: missing column")

	// ErrUnsupportedFormat indicates a file extension with no loader.
	ErrUnsupportedFormat = errors.New("profile: unsupported file format")
)
