package alert

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Notifier shows a message to the person using the client.
type Notifier interface {
	Alert(title, message string)
}

// Terminal prints alerts as a coloured title followed by the message.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Alert(title, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	title = color.New(color.FgRed, color.Bold).Sprint(title)
	fmt.Fprintf(t.out, "%s\n  %s\n", title, message)
}

type Record struct {
	Title   string
	Message string
}

// Recorder keeps every alert in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Alert(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{Title: title, Message: message})
}

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Record(nil), r.records...)
}
