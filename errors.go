package webcodecs

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers match with errors.Is; wrapped errors created with
// fmt.Errorf("%w: ...") stay matchable against their sentinel.
var (
	// ErrNotSupported reports an unknown or unsupported codec identifier,
	// pixel-format conversion, or engine capability.
	ErrNotSupported = errors.New("not supported")

	// ErrInvalidState reports a method invoked in a state that forbids it,
	// including use of a closed frame or chunk.
	ErrInvalidState = errors.New("invalid state")

	// ErrData reports malformed or mis-sized data supplied by the caller.
	ErrData = errors.New("data error")

	// ErrOperation reports a codec engine failure during submit or drain.
	ErrOperation = errors.New("operation error")
)

// Derived sentinels. These wrap their category above so errors.Is matches
// both the specific error and the taxonomy bucket.
var (
	// ErrBufferTooSmall reports a destination shorter than the required
	// allocation size. Matches ErrData.
	ErrBufferTooSmall = fmt.Errorf("%w: buffer too small", ErrData)

	// ErrSessionLost reports that the engine session is no longer usable and
	// every subsequent call on it will fail. Matches ErrOperation.
	ErrSessionLost = fmt.Errorf("%w: codec session lost", ErrOperation)
)
