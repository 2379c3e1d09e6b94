package proto

import (
	"errors"
	"fmt"
)

var ErrFrameTooLarge = errors.New("frame too large")

// TransportError: stream write/read failed or peer closed mid-element.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport true if err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
