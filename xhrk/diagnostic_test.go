package xhrk_test

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"gitlab.com/xhrshim/xhrk"
)

type namedError struct {
	Code   int
	Detail string
	hidden string
}

func (e *namedError) Error() string   { return e.Detail }
func (e *namedError) ErrName() string { return "NetworkError" }

func TestDumpError(t *testing.T) {
	if xhrk.DumpError(nil) != "" {
		t.Fatalf("nil error should dump to nothing\n")
	}

	dump := xhrk.DumpError(errors.WithStack(&namedError{Code: 7, Detail: "failed", hidden: "secret"}))
	for _, expected := range []string{"stack: ", "name: NetworkError", "message: failed", "Code: 7", "Detail: failed"} {
		if !strings.Contains(dump, expected) {
			t.Fatalf("missing %q in dump:\n%s\n", expected, dump)
		}
	}

	if strings.Contains(dump, "secret") {
		t.Fatalf("unexported fields must not be dumped:\n%s\n", dump)
	}

	if !strings.HasPrefix(dump, "stack: ") {
		t.Fatalf("stack should come first:\n%s\n", dump)
	}
	spew.Dump(dump)
}

func TestSerialScheduler(t *testing.T) {
	s := xhrk.NewSerialScheduler()
	results := make([]int, 0)
	for i := 0; i < 10; i++ {
		n := i
		s.Go(func() func() {
			return func() {
				results = append(results, n)
			}
		})
	}
	s.Go(func() func() { return nil })
	s.Wait()

	if len(results) != 10 {
		t.Fatalf("expected 10 continuations got %d\n", len(results))
	}
}

func TestInlineScheduler(t *testing.T) {
	ran := false
	xhrk.InlineScheduler{}.Go(func() func() {
		return func() { ran = true }
	})

	if !ran {
		t.Fatalf("inline continuation did not run\n")
	}
}
