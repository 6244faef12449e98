package intercept

import (
	"math"

	"gitlab.com/xhrshim/xhrk"
)

// SendHandler for adding middleware in front of the native send
type SendHandler func(c *SendContext)

const abortIndex int8 = math.MaxInt8 / 2

// SendContext is passed through the send handlers of a single Send call
type SendContext struct {
	Request  *Request
	Metadata *xhrk.Metadata
	Body     []byte

	handlers []SendHandler
	index    int8
	rule     string
}

func newSendContext(req *Request, meta *xhrk.Metadata, body []byte, handlers []SendHandler) *SendContext {
	return &SendContext{
		Request:  req,
		Metadata: meta,
		Body:     body,
		handlers: handlers,
		index:    -1,
	}
}

// Next calls the remaining handlers
func (c *SendContext) Next() {
	c.index++
	for c.index < int8(len(c.handlers)) {
		c.handlers[c.index](c)
		c.index++
	}
}

// Block the request. The pending handlers are not called and the native
// send never happens.
func (c *SendContext) Block(rule string) {
	c.rule = rule
	c.index = abortIndex
}

// IsBlocked returns true if a handler blocked the request
func (c *SendContext) IsBlocked() bool {
	return c.index >= abortIndex
}

// Rule that blocked the request
func (c *SendContext) Rule() string {
	return c.rule
}
