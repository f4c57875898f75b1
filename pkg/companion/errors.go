package companion

import (
	"errors"
	"fmt"

	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/msgs"
)

var (
	// ErrNoReply indicates no reply received from the head.
	// This happens when a reply is received for a latter request, and all
	// previous requests fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrClosed is returned to requests pending when the stream ends.
	ErrClosed = errors.New("connection closed")
)

// StatusError is a response with a failure status.
type StatusError struct {
	Cmd    comm.CommandType
	Status uint16
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%#04x)", e.Cmd, msgs.StatusText(e.Status), e.Status)
}

// IsNotFound reports err is a not found status.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == msgs.StatusNotFound
}
