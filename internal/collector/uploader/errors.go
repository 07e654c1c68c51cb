package uploader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type ErrorKind int

const (
	Retryable ErrorKind = iota
	NonRetryable
)

func (kind ErrorKind) String() string {
	switch kind {
	case Retryable:
		return "retryable"
	case NonRetryable:
		return "non_retryable"
	default:
		return "unknown"
	}
}

// Classified failure of one send
type UploadError struct {
	Kind ErrorKind
	Err  error
}

func (e *UploadError) Error() string {
	return e.Kind.String() + " upload error: " + e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Part or all of a batch was given up on. Unwraps to every reason a segment was dropped.
type DiscardError struct {
	Sequence  uint64
	Delivered int
	Discarded int
	Reasons   []error
}

func (e *DiscardError) Error() string {
	reasons := make([]string, 0, len(e.Reasons))
	for _, reason := range e.Reasons {
		reasons = append(reasons, reason.Error())
	}
	return fmt.Sprintf("%d of %d segments not delivered: %s",
		e.Discarded, e.Delivered+e.Discarded, strings.Join(reasons, "; "))
}

func (e *DiscardError) Unwrap() []error {
	return e.Reasons
}

func Retry(err error) error {
	return &UploadError{Kind: Retryable, Err: err}
}

func Reject(err error) error {
	return &UploadError{Kind: NonRetryable, Err: err}
}

// Classified errors report their kind. Unclassified timeouts and network
// failures retry, anything else is treated as a rejection.
func IsRetryable(err error) (retryable bool) {
	if err == nil {
		return
	}

	var uploadErr *UploadError
	if errors.As(err, &uploadErr) {
		retryable = uploadErr.Kind == Retryable
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		retryable = true
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		retryable = true
		return
	}
	return
}
