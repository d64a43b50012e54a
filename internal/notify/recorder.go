package notify

import (
	"context"
	"fmt"
	"sync"
)

// Recorder keeps sent messages in memory. Tests inject failures per kind.
type Recorder struct {
	mu     sync.Mutex
	sent   []Message
	failOn map[Kind]error
}

func NewRecorder() *Recorder {
	return &Recorder{failOn: make(map[Kind]error)}
}

// FailOn makes every Send of kind return err. A nil err clears it.
func (r *Recorder) FailOn(kind Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOn, kind)
		return
	}
	r.failOn[kind] = err
}

func (r *Recorder) Send(_ context.Context, msg Message) (string, error) {
	if _, _, err := Render(msg); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[msg.Kind]; err != nil {
		return "", err
	}
	r.sent = append(r.sent, msg)
	return fmt.Sprintf("rec-%d", len(r.sent)), nil
}

// Sent returns messages of kind, or all messages when kind is empty.
func (r *Recorder) Sent(kind Kind) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0, len(r.sent))
	for _, m := range r.sent {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
