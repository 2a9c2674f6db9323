package cloud

import (
	"errors"
	"fmt"
)

// Error kinds. Provider packages classify SDK errors into these so callers
// can branch with errors.Is regardless of the cloud.
var (
	ErrProviderAuth      = errors.New("provider authentication failed")
	ErrNotFound          = errors.New("resource not found")
	ErrQuotaOrPermission = errors.New("provider quota or permission denied")
	ErrImageNotFound     = errors.New("no image matches the filter")
	ErrTemplateRender    = errors.New("boot script rendering failed")
	ErrTimeout           = errors.New("timed out waiting for provider")
	ErrInvalidState      = errors.New("invalid lifecycle transition")
)

// OperationError ties a provider failure to the logical operation that caused
// it. Kind is one of the sentinels above or nil when unclassified; Err keeps
// the provider's own message.
type OperationError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OperationError) Error() string {
	if e.Kind != nil && !errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// NewOperationError wraps err for op. It returns nil for a nil err.
func NewOperationError(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Kind: kind, Err: err}
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// OperationName returns the operation recorded on err, or "".
func OperationName(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Op
	}
	return ""
}
