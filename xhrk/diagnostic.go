package xhrk

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type namer interface {
	ErrName() string
}

// DumpError renders the properties of err as "name: value" lines: its stack
// (when created with pkg/errors), its message and the exported fields of the
// underlying error value. Falls back to err.Error() if nothing is rendered.
func DumpError(err error) string {
	if err == nil {
		return ""
	}

	lines := make([]string, 0)
	if st, ok := err.(stackTracer); ok {
		lines = append(lines, fmt.Sprintf("stack: %s", strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))))
	}

	cause := errors.Cause(err)
	if n, ok := cause.(namer); ok {
		lines = append(lines, "name: "+n.ErrName())
	}
	if msg := err.Error(); msg != "" {
		lines = append(lines, "message: "+msg)
	}
	lines = append(lines, fieldLines(cause)...)

	dump := strings.TrimSpace(strings.Join(lines, "\n"))
	if dump == "" {
		return fmt.Sprintf("%v", err)
	}
	return dump
}

func fieldLines(err error) []string {
	v := reflect.ValueOf(err)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	lines := make([]string, 0)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", f.Name, v.Field(i).Interface()))
	}
	return lines
}
