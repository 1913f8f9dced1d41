package detection

import "errors"

// ErrServiceFailure indicates the detection service returned an error
// envelope rather than a result.
var ErrServiceFailure = errors.New("detection: service failure")
