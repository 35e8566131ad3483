package medfiles

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-file failure.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindTransport
	KindIndex
	KindNotFound
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindIndex:
		return "index"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Stable reasons reported to callers. Clients match on these.
const (
	ReasonSizeLimit      = "exceeds size limit"
	ReasonTypeNotAllowed = "type not allowed"
	ReasonBatchLimit     = "batch limit exceeded"
	ReasonStorageFailed  = "storage failed"
	ReasonSizeMismatch   = "size mismatch"
	ReasonIndexFailed    = "index failed"
	ReasonTimeout        = "timeout"
	ReasonNotFound       = "not found"
)

var (
	ErrIllegalTransition  = errors.New("illegal task state transition")
	ErrTaskNotCancellable = errors.New("task is not cancellable")
	ErrTaskNotFound       = errors.New("task not found")
)

// UploadError is a failure attributed to a single file.
type UploadError struct {
	Kind     ErrorKind
	FileName string
	Reason   string
	// Detail is a human readable message; never matched on.
	Detail string
	Err    error
}

func (e *UploadError) Error() string {
	msg := e.Reason
	if e.FileName != "" {
		msg = fmt.Sprintf("%s: %s", e.FileName, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first UploadError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var uerr *UploadError
	if errors.As(err, &uerr) {
		return uerr.Kind
	}
	return 0
}

func validationError(fileName, reason, detail string) *UploadError {
	return &UploadError{Kind: KindValidation, FileName: fileName, Reason: reason, Detail: detail}
}
