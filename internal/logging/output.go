package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// OutputLog appends one JSON document per line to a writer, typically a
// rotating file. It records every crawl response served.
type OutputLog struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewOutputLog wraps w. A nil w discards every entry.
func NewOutputLog(w io.Writer) *OutputLog {
	if w == nil {
		w = io.Discard
	}
	return &OutputLog{w: w, enc: json.NewEncoder(w)}
}

// OpenOutputLog opens a rotating output log at path.
func OpenOutputLog(path string, maxSizeMB, maxBackups, maxAgeDays int) (*OutputLog, io.Closer, error) {
	rotator, err := NewRotator(path, maxSizeMB, maxBackups, maxAgeDays)
	if err != nil {
		return nil, nil, err
	}
	return NewOutputLog(rotator), rotator, nil
}

// Write encodes v as a single JSON line.
func (o *OutputLog) Write(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(v); err != nil {
		return fmt.Errorf("writing output log: %w", err)
	}
	return nil
}
