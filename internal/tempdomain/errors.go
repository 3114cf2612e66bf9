package tempdomain

import "errors"

var (
	// ErrServiceDestroyed is returned by refresh requests after Destroy.
	ErrServiceDestroyed = errors.New("temp domain service destroyed")
	// ErrUnknownFormat is returned for export formats other than json and txt.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrInvalidRegexp wraps a search expression that does not compile.
	ErrInvalidRegexp = errors.New("invalid search expression")
	// ErrUnexpectedStatus is returned by a source answering with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrSourceTooLarge is returned for a source body over the size limit.
	ErrSourceTooLarge = errors.New("source list too large")
)
