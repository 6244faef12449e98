package native

import (
	"fmt"

	"github.com/pkg/errors"
)

// DOMError mirrors the DOMException names thrown by a browser XMLHttpRequest
type DOMError struct {
	Name    string
	Message string
}

func (e *DOMError) Error() string {
	return e.Name + ": " + e.Message
}

// ErrName of the exception
func (e *DOMError) ErrName() string {
	return e.Name
}

// revive:disable:var-naming
const (
	InvalidStateError  = "InvalidStateError"
	SyntaxError        = "SyntaxError"
	SecurityError      = "SecurityError"
	InvalidAccessError = "InvalidAccessError"
	NetworkError       = "NetworkError"
	TimeoutError       = "TimeoutError"
	AbortError         = "AbortError"
)

func domError(name, format string, args ...interface{}) error {
	return errors.WithStack(&DOMError{Name: name, Message: fmt.Sprintf(format, args...)})
}

// IsDOMError returns true if err was caused by a DOMError called name
func IsDOMError(err error, name string) bool {
	var d *DOMError
	if !errors.As(err, &d) {
		return false
	}
	return d.Name == name
}
