// Package rawevents buffers every inbound TikTok event in memory and flushes
// it to storage in batches, keeping persistence latency off the hot path.
package rawevents

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livejam/backend/internal/models"
)

const (
	// DefaultFlushInterval is how often buffered events are written out.
	DefaultFlushInterval = time.Second
	// MaxPayloadBytes caps a single serialized payload; larger payloads are
	// replaced with a truncation marker annotating the original size.
	MaxPayloadBytes = 10 * 1024
)

// Sink performs the batch insert. No-op on an empty batch.
type Sink interface {
	InsertBatch(ctx context.Context, batch []models.RawEvent) error
}

// Buffer accumulates raw events for one session. Append is cheap and never
// does I/O; a flush timer swaps the buffer out and performs one batch write.
type Buffer struct {
	sessionID uuid.UUID
	sink      Sink
	logger    *zap.Logger
	interval  time.Duration

	mu    sync.Mutex
	items []models.RawEvent

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	now func() time.Time
}

// NewBuffer creates a raw-event buffer for a session.
func NewBuffer(sessionID uuid.UUID, sink Sink, logger *zap.Logger) *Buffer {
	return &Buffer{
		sessionID: sessionID,
		sink:      sink,
		logger:    logger,
		interval:  DefaultFlushInterval,
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Append records one event. The payload is serialized immediately so later
// mutation of the source object cannot corrupt the audit copy; oversized or
// unserializable payloads are replaced with marker objects.
func (b *Buffer) Append(eventType, viewer string, payload any) {
	body := serializePayload(payload)

	var viewerPtr *string
	if viewer != "" {
		viewerPtr = &viewer
	}
	ev := models.RawEvent{
		LiveSessionID:  b.sessionID,
		EventType:      eventType,
		ViewerUsername: viewerPtr,
		Payload:        body,
		ReceivedAt:     b.now(),
	}

	b.mu.Lock()
	b.items = append(b.items, ev)
	b.mu.Unlock()
}

func serializePayload(payload any) json.RawMessage {
	body, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{"_serializationError":true}`)
	}
	if len(body) > MaxPayloadBytes {
		return json.RawMessage(fmt.Sprintf(`{"_truncated":true,"_originalSize":%d}`, len(body)))
	}
	return body
}

// Start launches the flush timer.
func (b *Buffer) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				b.Flush(context.Background())
			}
		}
	}()
}

// Flush swaps the buffer contents out and writes them as one batch. Errors
// are logged and swallowed; the events of a failed batch are dropped rather
// than retried, since raw logging is best-effort.
func (b *Buffer) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.items
	b.items = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := b.sink.InsertBatch(ctx, batch); err != nil {
		b.logger.Error("flush raw events",
			zap.Error(err),
			zap.String("session_id", b.sessionID.String()),
			zap.Int("count", len(batch)))
	}
}

// Stop cancels the flush timer and performs one final flush of whatever
// remains buffered. Safe to call more than once.
func (b *Buffer) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.Flush(ctx)
	})
}
