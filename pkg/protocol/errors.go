package protocol

import "fmt"

type DecodeErrorKind int

const (
	MalformedHeader DecodeErrorKind = iota
	InvalidEncoding
	TruncatedPayload
)

// Per-datagram decode failure
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (kind DecodeErrorKind) String() (name string) {
	switch kind {
	case MalformedHeader:
		name = "malformed_header"
	case InvalidEncoding:
		name = "invalid_encoding"
	case TruncatedPayload:
		name = "truncated_payload"
	default:
		name = fmt.Sprintf("unknown_%d", int(kind))
	}
	return
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(kind DecodeErrorKind, format string, vars ...any) (err *DecodeError) {
	err = &DecodeError{
		Kind: kind,
		Err:  fmt.Errorf(format, vars...),
	}
	return
}
