package audit

import (
	"context"
	"time"
)

// DefaultBufferSize is the Writer queue depth used when none is given.
const DefaultBufferSize = 256

// writeTimeout bounds each insert.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by Writer.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer queues entries and writes them one at a time, so callers on the
// request path never wait for SQLite. Entries beyond the queue depth are
// dropped with a warning.
type Writer struct {
	repo   Repository
	logger Logger
	queue  chan *Entry
}

// NewWriter creates a Writer over repo. Call Run to start writing.
func NewWriter(repo Repository, logger Logger, size int) *Writer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Writer{repo: repo, logger: logger, queue: make(chan *Entry, size)}
}

// Log enqueues an entry. It never blocks. A nil Writer discards.
func (w *Writer) Log(e Entry) {
	if w == nil {
		return
	}
	select {
	case w.queue <- &e:
	default:
		w.logger.Warn("audit queue full, dropping entry",
			"action", e.Action,
			"entity_type", e.EntityType,
		)
	}
}

// Run writes queued entries until ctx is done, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case e := <-w.queue:
			w.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-w.queue:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := w.repo.Create(ctx, e); err != nil {
		w.logger.Error("audit log write failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"error", err,
		)
	}
}
