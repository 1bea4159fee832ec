package levels

import "errors"

var (
	// ErrEmptySeries is returned when an operation receives no bars.
	ErrEmptySeries = errors.New("levels: empty bar series")

	// ErrIndexOutOfRange is returned for a bar index outside [0, len(bars)).
	ErrIndexOutOfRange = errors.New("levels: bar index out of range")

	// ErrWindowOutOfRange is returned under BoundaryError when a scan window
	// extends past either end of the series.
	ErrWindowOutOfRange = errors.New("levels: scan window exceeds series bounds")

	// ErrInvalidLevel is returned when a level price cannot serve as the
	// denominator of a relative-distance comparison (zero, negative, NaN, Inf).
	ErrInvalidLevel = errors.New("levels: invalid level price")

	// ErrInvalidParams is returned for negative window sizes or tolerances.
	ErrInvalidParams = errors.New("levels: invalid parameters")

	// ErrLengthMismatch is returned when the rejection series and the bar
	// series have different lengths.
	ErrLengthMismatch = errors.New("levels: rejection series length differs from bar series")
)
