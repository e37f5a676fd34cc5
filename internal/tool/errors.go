package tool

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrToolNotFound means the model named a tool that is not registered
	ErrToolNotFound = errors.New("ToolNotFound")
	// ErrInvalidToolArguments means the arguments failed schema validation
	ErrInvalidToolArguments = errors.New("InvalidToolArguments")
	// ErrDuplicateToolName is returned by Register for a name already in use
	ErrDuplicateToolName = errors.New("DuplicateToolName")
)

// kindError prefixes a detail message with its sentinel, e.g. "ToolNotFound: ..."
type kindError struct {
	kind   error
	detail string
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.detail
}

func (e *kindError) Unwrap() error {
	return e.kind
}

func kindErrorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, detail: fmt.Sprintf(format, args...)}
}
