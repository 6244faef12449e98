package intercept

import (
	"testing"
)

func TestSendContextNext(t *testing.T) {
	order := make([]int, 0)
	handlers := []SendHandler{
		func(c *SendContext) {
			order = append(order, 1)
			c.Next()
			order = append(order, 4)
		},
		func(c *SendContext) {
			order = append(order, 2)
		},
		func(c *SendContext) {
			order = append(order, 3)
		},
	}

	c := newSendContext(nil, nil, nil, handlers)
	c.Next()

	expected := []int{1, 2, 3, 4}
	if len(order) != len(expected) {
		t.Fatalf("unexpected order %v\n", order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("unexpected order %v\n", order)
		}
	}

	if c.IsBlocked() {
		t.Fatalf("context should not be blocked\n")
	}
}

func TestSendContextBlock(t *testing.T) {
	called := false
	handlers := []SendHandler{
		func(c *SendContext) {
			c.Block("rule")
		},
		func(c *SendContext) {
			called = true
		},
	}

	c := newSendContext(nil, nil, nil, handlers)
	c.Next()

	if called {
		t.Fatalf("handler after block was called\n")
	}

	if !c.IsBlocked() || c.Rule() != "rule" {
		t.Fatalf("expected blocked by rule got %v %s\n", c.IsBlocked(), c.Rule())
	}
}
