// Package moderation handles user reports and bans.
// A report adds its reason's weight to the reported session's score; once
// the score over config.ReportWindow reaches config.AutoBanThreshold the
// session is banned, with the ban length escalating for repeat offenders.
package moderation

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"omechat/backend/internal/analysis"
	"omechat/backend/internal/config"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
	"omechat/backend/internal/storage"
)

var (
	ErrInvalidReason  = errors.New("invalid report reason")
	ErrNoReportTarget = errors.New("report has no target session")
	ErrSelfReport     = errors.New("session cannot report itself")
	// ErrTargetMismatch: the named session is not the reporter's partner in
	// the given connection.
	ErrTargetMismatch = errors.New("reported session is not the partner in that connection")
	ErrEmptyBan       = errors.New("ban needs a session, ip address or fingerprint")
)

// Kicker removes a live session from the matchmaking engine.
type Kicker interface {
	Kick(sessionID, reason string) bool
}

// Notifier tells moderators about automatic bans.
type Notifier interface {
	NotifyBan(ban *models.Ban, score int) error
}

type ReportInput struct {
	ReporterSessionID string
	ConnectionID      string
	ReportedSessionID string
	Reason            models.ReportReason
	Description       string
}

// Outcome is what HandleReport did. Ban is nil when no ban was issued.
type Outcome struct {
	Report *models.Report
	Score  int
	Ban    *models.Ban
}

// BanRequest describes a manual ban. Zero Duration means permanent.
type BanRequest struct {
	SessionID         string
	IPAddress         string
	DeviceFingerprint string
	Reason            string
	Duration          time.Duration
}

// Service handles the business logic for reports.
type Service struct {
	Storage  storage.Storage
	Kicker   Kicker
	Notifier Notifier

	now func() time.Time
}

type Option func(*Service)

func WithKicker(k Kicker) Option     { return func(s *Service) { s.Kicker = k } }
func WithNotifier(n Notifier) Option { return func(s *Service) { s.Notifier = n } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new moderation service.
func NewService(st storage.Storage, opts ...Option) *Service {
	s := &Service{Storage: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleReport saves a report and applies the automatic ban policy.
func (s *Service) HandleReport(in ReportInput) (*Outcome, error) {
	if !in.Reason.Valid() {
		return nil, errors.Wrapf(ErrInvalidReason, "%q", in.Reason)
	}

	reported, err := s.resolveTarget(in)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterSessionID: in.ReporterSessionID,
		ReportedSessionID: &reported,
		Reason:            in.Reason,
		Description:       in.Description,
		CreatedAt:         s.now(),
	}
	if in.ConnectionID != "" {
		connID := in.ConnectionID
		report.ConnectionID = &connID
	}
	if err := s.Storage.SaveReport(report); err != nil {
		return nil, err
	}
	if report.ConnectionID != nil {
		if err := s.Storage.MarkConnectionReported(*report.ConnectionID); err != nil {
			logging.L().Warn("mark connection reported", zap.String("connection_id", *report.ConnectionID), zap.Error(err))
		}
	}

	since := s.now().Add(-config.ReportWindow)
	reports, err := s.Storage.ListReportsAgainst(reported, since)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Report: report, Score: analysis.Score(reports, since)}
	logging.L().Info("report received",
		zap.String("report_id", report.ID),
		zap.String("reported_session_id", reported),
		zap.String("reason", string(in.Reason)),
		zap.Int("score", out.Score))

	if out.Score < config.AutoBanThreshold {
		return out, nil
	}
	out.Ban, err = s.autoBan(reported, out.Score)
	return out, err
}

// resolveTarget takes the reported session from the connection record when
// one is named; a separately named session must agree with it.
func (s *Service) resolveTarget(in ReportInput) (string, error) {
	reported := in.ReportedSessionID
	if in.ConnectionID != "" {
		conn, err := s.Storage.GetConnectionByID(in.ConnectionID)
		switch {
		case err == nil:
			partner := conn.PartnerOf(in.ReporterSessionID)
			if partner == "" {
				return "", errors.Wrapf(ErrNoReportTarget, "session %s is not part of connection %s", in.ReporterSessionID, in.ConnectionID)
			}
			if reported != "" && reported != partner {
				return "", errors.Wrapf(ErrTargetMismatch, "session %s in connection %s", reported, in.ConnectionID)
			}
			reported = partner
		case errors.Is(err, storage.ErrNotFound):
			if reported == "" {
				return "", errors.Wrapf(ErrNoReportTarget, "connection %s", in.ConnectionID)
			}
		default:
			return "", err
		}
	}
	if reported == "" {
		return "", ErrNoReportTarget
	}
	if reported == in.ReporterSessionID {
		return "", ErrSelfReport
	}
	return reported, nil
}

func (s *Service) autoBan(sessionID string, score int) (*models.Ban, error) {
	existing, err := s.Storage.FindActiveBan(sessionID, "", "")
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	prior, err := s.Storage.CountBansSince(sessionID, s.now().Add(-config.BanEscalationWindow))
	if err != nil {
		return nil, err
	}
	level := int(prior) + 1

	req := BanRequest{
		SessionID: sessionID,
		Reason:    fmt.Sprintf("automatic: report score %d (level %d)", score, level),
		Duration:  analysis.BanDuration(level),
	}
	if session, err := s.Storage.GetSession(sessionID); err == nil {
		req.IPAddress = session.IPAddress
		req.DeviceFingerprint = session.DeviceFingerprint
	} else {
		logging.L().Warn("auto-ban without device identifiers", zap.String("session_id", sessionID), zap.Error(err))
	}

	ban, err := s.Ban(req)
	if err != nil {
		return nil, err
	}
	if s.Notifier != nil {
		if err := s.Notifier.NotifyBan(ban, score); err != nil {
			logging.L().Warn("notify moderators", zap.String("ban_id", ban.ID), zap.Error(err))
		}
	}
	return ban, nil
}

// Ban creates a ban and kicks the session if it is live.
func (s *Service) Ban(req BanRequest) (*models.Ban, error) {
	if req.SessionID == "" && req.IPAddress == "" && req.DeviceFingerprint == "" {
		return nil, ErrEmptyBan
	}
	ban := &models.Ban{
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
		Reason:            req.Reason,
		CreatedAt:         s.now(),
		IsActive:          true,
	}
	if req.SessionID != "" {
		sid := req.SessionID
		ban.SessionID = &sid
	}
	if req.Duration > 0 {
		expires := s.now().Add(req.Duration)
		ban.ExpiresAt = &expires
	}
	if err := s.Storage.CreateBan(ban); err != nil {
		return nil, err
	}
	logging.L().Info("ban created",
		zap.String("ban_id", ban.ID),
		zap.Stringp("session_id", ban.SessionID),
		zap.Duration("duration", req.Duration))

	if ban.SessionID != nil && s.Kicker != nil {
		s.Kicker.Kick(*ban.SessionID, ban.Reason)
	}
	return ban, nil
}

func (s *Service) Unban(banID string) error {
	return s.Storage.DeactivateBan(banID)
}

func (s *Service) ListReports(status models.ReportStatus, limit int) ([]models.Report, error) {
	return s.Storage.ListReports(status, limit)
}

// ResolveReport closes a report as RESOLVED, or REJECTED when reject is set.
// Rejected reports stop counting towards the automatic ban score.
func (s *Service) ResolveReport(reportID string, reject bool) error {
	status := models.ReportResolved
	if reject {
		status = models.ReportRejected
	}
	return s.Storage.UpdateReportStatus(reportID, status)
}
