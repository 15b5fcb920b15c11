package resultlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// Sink is a destination for audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// FileSink appends formatted blocks to a local text file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a FileSink. The file is created on first append.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Append writes one block. Concurrent appends never interleave.
func (s *FileSink) Append(_ context.Context, e Entry) error {
	block := Format(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	if _, err := f.WriteString(block); err != nil {
		f.Close()
		return fmt.Errorf("write result log: %w", err)
	}
	return f.Close()
}

// Target is a sink with a stable name. Queued entries remember the names of
// the targets that still owe them, so a retry never repeats a delivery.
type Target struct {
	Name string
	Sink Sink
}

// Fanout delivers entries to several named sinks.
type Fanout []Target

// Append writes to every target even when an earlier one fails.
func (f Fanout) Append(ctx context.Context, e Entry) error {
	_, err := f.Deliver(ctx, e, nil)
	return err
}

// Deliver writes e to the targets named in only, or to all of them when only
// is empty. It returns the names of the targets that failed.
func (f Fanout) Deliver(ctx context.Context, e Entry, only []string) (failed []string, err error) {
	var errs []error
	for _, t := range f {
		if len(only) > 0 && !slices.Contains(only, t.Name) {
			continue
		}
		if err := t.Sink.Append(ctx, e); err != nil {
			failed = append(failed, t.Name)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}
	return failed, errors.Join(errs...)
}

// Queued is the payload of the result log queue: an entry plus the targets
// still owing it. An empty Pending means every target.
type Queued struct {
	Entry
	Pending []string `json:"pending,omitempty"`
}
