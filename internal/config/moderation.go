package config

import (
	"time"

	"omechat/backend/internal/models"
)

const (
	// Reports
	ReportWindow     = 24 * time.Hour
	AutoBanThreshold = 100

	// Ban escalation: a repeat offender within the window gets the next level.
	BanEscalationWindow = 30 * 24 * time.Hour
	BanLevel1Duration   = 30 * time.Minute
	BanLevel2Duration   = 6 * time.Hour
	BanLevel3Duration   = 24 * time.Hour
)

// ReportWeights is the penalty each report reason adds towards AutoBanThreshold.
var ReportWeights = map[models.ReportReason]int{
	models.ReasonNudity:     100,
	models.ReasonHarassment: 50,
	models.ReasonBot:        50,
	models.ReasonSpam:       25,
	models.ReasonOther:      10,
}
