package chathub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
)

// StatsSink receives periodic engine snapshots, e.g. a Redis publisher that
// lets other processes read the online count.
type StatsSink interface {
	PublishStats(ctx context.Context, stats models.OnlineStats) error
}

// RunStatsPublisher pushes Stats to sink every interval until ctx is done.
// Publish failures are logged and the loop keeps going.
func (m *ManagerService) RunStatsPublisher(ctx context.Context, sink StatsSink, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.L().Info("stats publisher started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sink.PublishStats(ctx, m.Stats()); err != nil {
				logging.L().Warn("publish stats", zap.Error(err))
			}
		}
	}
}
