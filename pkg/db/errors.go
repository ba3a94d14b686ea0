package db

import "fmt"

// SourceReadError marks a transient failure reading a source; the caller
// retries it with backoff.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("source read %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// SinkWriteError marks a batch-level write failure. The stage retries the
// whole batch; if it still fails the stage aborts without advancing its
// watermark.
type SinkWriteError struct {
	Table string
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink write %s: %v", e.Table, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }
