package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval paces lock acquisition attempts against other
// processes appending to the same audit file.
const lockRetryInterval = 10 * time.Millisecond

// FileLog appends audit entries as JSON lines to a local file. A
// cross-process file lock serializes appends from multiple processes.
type FileLog struct {
	path string
	lock *flock.Flock
}

// NewFileLog creates the sink for path; the file is created on first
// write.
func NewFileLog(path string) *FileLog {
	return &FileLog{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Write implements Log. Each entry is one JSON line, written under the
// file lock so concurrent writers never interleave.
func (l *FileLog) Write(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("serialize audit entry: %w", err)
	}
	locked, err := l.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire audit lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire audit lock: not acquired")
	}
	defer func() { _ = l.lock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Close implements Log.
func (l *FileLog) Close() error { return nil }
