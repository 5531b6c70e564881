package chathub

import (
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

// Recorder persists connection records. It is called from pool workers,
// never from inside the engine's critical section.
type Recorder interface {
	RecordMatchStart(conn *models.Connection) error
	RecordMatchEnd(conn *models.Connection) error
}

// NewPersistPool builds the worker pool that runs Recorder calls.
func NewPersistPool(size int) (*ants.Pool, error) {
	return ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			logging.L().Error("persist worker panic", zap.Any("panic", p))
		}))
}

type asyncRecorder struct {
	rec  Recorder
	pool *ants.Pool
}

func toRecord(c ActiveConnection) *models.Connection {
	return &models.Connection{
		ID:         c.ConnectionID,
		SessionAID: c.SessionA,
		SessionBID: c.SessionB,
		StartedAt:  c.StartedAt,
	}
}

func (a *asyncRecorder) matchStarted(c ActiveConnection) {
	if a == nil {
		return
	}
	rec := toRecord(c)
	a.submit("start", rec.ID, func() error { return a.rec.RecordMatchStart(rec) })
}

func (a *asyncRecorder) matchEnded(e *Ended, reason models.EndedReason) {
	if a == nil || e == nil {
		return
	}
	rec := toRecord(e.Connection)
	endedAt := e.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	rec.EndedAt = &endedAt
	rec.EndedReason = &reason
	a.submit("end", rec.ID, func() error { return a.rec.RecordMatchEnd(rec) })
}

func (a *asyncRecorder) submit(op, connectionID string, fn func() error) {
	err := a.pool.Submit(func() {
		if err := fn(); err != nil {
			logging.L().Warn("persist connection record",
				zap.String("op", op),
				zap.String("connection_id", connectionID),
				zap.Error(err))
		}
	})
	if err != nil {
		logging.L().Warn("persist pool rejected task",
			zap.String("op", op),
			zap.String("connection_id", connectionID),
			zap.Error(err))
	}
}
