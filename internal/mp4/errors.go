package mp4

import "errors"

// Error kinds, named per spec §7. Parsing functions wrap one of these with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrMalformed covers box-size mismatches, oversize records, and any
	// other structurally invalid input.
	ErrMalformed = errors.New("protocol-malformed")

	// ErrExtradataInvalid covers missing or zero-length SPS/PPS/VPS.
	ErrExtradataInvalid = errors.New("extradata-invalid")

	// ErrCodecUnsupported covers a track codec outside the supported set.
	ErrCodecUnsupported = errors.New("codec-unsupported")

	// ErrShortRead covers a reader returning fewer bytes than requested.
	ErrShortRead = errors.New("io-short-read")
)
