// Package calllog implements a fire-and-forget accept that persists
// resolved-call telemetry on a background goroutine. The async
// bounded-queue/drop-oldest policy is deliberate: telemetry, not business
// state, must never make a caller wait on a database write.
package calllog

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/HyxiaoGe/prompthub/internal/domain"
	"github.com/HyxiaoGe/prompthub/internal/repo"
)

// Sink accepts CallLog records and writes them asynchronously. Overflow
// policy is drop-oldest: when the queue is full, the oldest queued record
// is discarded to make room for the new one, and Dropped is incremented.
type Sink struct {
	repo     repo.Repo
	queue    chan domain.CallLog
	maxLen   int
	dropped  atomic.Int64
	logger   *log.Logger
	done     chan struct{}
}

// New starts a Sink with the given queue depth and rendered-content
// truncation length, draining on a background goroutine until Close.
func New(r repo.Repo, queueDepth, contentMaxLength int, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	s := &Sink{
		repo:   r,
		queue:  make(chan domain.CallLog, queueDepth),
		maxLen: contentMaxLength,
		logger: logger,
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// Accept enqueues a record and returns immediately. On a full queue, the
// oldest queued record is dropped (drop-oldest overflow policy) to make
// room, and the new record is always admitted.
func (s *Sink) Accept(c domain.CallLog) {
	if s.maxLen > 0 && len(c.RenderedContent) > s.maxLen {
		c.RenderedContent = c.RenderedContent[:s.maxLen]
	}
	select {
	case s.queue <- c:
		return
	default:
	}
	select {
	case <-s.queue:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.queue <- c:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns the number of records discarded due to queue overflow,
// exposed to observability.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Sink) drain() {
	ctx := context.Background()
	for {
		select {
		case c, ok := <-s.queue:
			if !ok {
				return
			}
			if err := s.repo.InsertCallLog(ctx, c); err != nil {
				s.logger.Printf("calllog: insert failed: %v", err)
			}
		case <-s.done:
			return
		}
	}
}

// Close stops the drain loop. Queued-but-undrained records are lost, which
// is acceptable for best-effort telemetry.
func (s *Sink) Close() {
	close(s.done)
}
