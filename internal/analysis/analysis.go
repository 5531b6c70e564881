// Package analysis scores reports against a session.
// Weights come from config.ReportWeights; the moderation service compares the
// score with config.AutoBanThreshold.
package analysis

import (
	"time"

	"github.com/samber/lo"

	"omechat/backend/internal/config"
	"omechat/backend/internal/models"
)

// GetWeight returns the weight (penalty) for a given report reason.
// It returns 0 if the reason is not recognized.
func GetWeight(reason models.ReportReason) int {
	return config.ReportWeights[reason]
}

// Score sums the weights of the reports created at or after since.
// Rejected reports do not count.
func Score(reports []models.Report, since time.Time) int {
	return lo.SumBy(lo.Filter(reports, func(r models.Report, _ int) bool {
		return r.Status != models.ReportRejected && !r.CreatedAt.Before(since)
	}), func(r models.Report) int {
		return GetWeight(r.Reason)
	})
}

// BanDuration maps an escalation level (1-based) to a ban length.
func BanDuration(level int) time.Duration {
	switch level {
	case 1:
		return config.BanLevel1Duration
	case 2:
		return config.BanLevel2Duration
	default:
		return config.BanLevel3Duration
	}
}
