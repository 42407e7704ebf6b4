package rate

import "errors"

// ErrUnavailable wraps Redis transport failures. Callers decide whether
// to fail open or closed; the limiter itself never guesses.
var ErrUnavailable = errors.New("rate: limiter backend unavailable")
