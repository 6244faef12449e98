package xhrk

import "time"

// CaptureKind of an observed interception
type CaptureKind int8

// revive:disable:var-naming
const (
	CaptureOpened CaptureKind = iota + 1
	CaptureSent
	CaptureBlocked
	CaptureFailed
	CaptureFinished
)

// CaptureKindMap for printing
var CaptureKindMap = map[CaptureKind]string{
	CaptureOpened:   "OPENED",
	CaptureSent:     "SENT",
	CaptureBlocked:  "BLOCKED",
	CaptureFailed:   "FAILED",
	CaptureFinished: "FINISHED",
}

func (k CaptureKind) String() string {
	if s, ok := CaptureKindMap[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Capture is a single observation made by the interception layer
type Capture struct {
	ID        string      `json:"id"`
	RequestID string      `json:"request_id"`
	Kind      CaptureKind `json:"kind"`
	Observed  time.Time   `json:"observed"`
	Metadata  *Metadata   `json:"metadata,omitempty"`
	Rule      string      `json:"rule,omitempty"`   // block rule that matched
	Method    string      `json:"method,omitempty"` // intercepted method that failed
	Error     string      `json:"error,omitempty"`
}

// Observer receives captures, it must not block
type Observer interface {
	Observe(capture *Capture)
}

// ObserverFunc adapts a function to an Observer
type ObserverFunc func(capture *Capture)

// Observe calls f
func (f ObserverFunc) Observe(capture *Capture) {
	f(capture)
}

// BlockService decides whether a request URL must be dropped
type BlockService interface {
	Add(patterns []string)
	// Match returns the matching rule and true if url is blocked
	Match(url string) (string, bool)
}
