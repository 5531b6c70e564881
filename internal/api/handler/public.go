package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"omechat/backend/internal/localization"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/models"
	"omechat/backend/internal/moderation"
)

const maxInterests = 10

type startSessionRequest struct {
	DeviceType        models.DeviceType `json:"device_type" binding:"required"`
	Gender            string            `json:"gender"`
	PreferredGender   string            `json:"preferred_gender"`
	DeviceFingerprint string            `json:"device_fingerprint"`
	Country           string            `json:"country"`
	Interests         []string          `json:"interests"`
}

type heartbeatRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

type reportRequest struct {
	SessionToken      string              `json:"session_token" binding:"required"`
	Reason            models.ReportReason `json:"reason" binding:"required"`
	ConnectionID      string              `json:"connection_id"`
	ReportedSessionID string              `json:"reported_session_id"`
	Description       string              `json:"description"`
}

// StartSession creates an anonymous session and returns its token together
// with the ICE servers the client should use.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, localization.KeyBadRequest)
		return
	}
	if !req.DeviceType.Valid() {
		h.fail(c, http.StatusBadRequest, localization.KeySessionBadDevice)
		return
	}

	ip := c.ClientIP()
	ban, err := h.Storage.FindActiveBan("", ip, req.DeviceFingerprint)
	if err != nil {
		logging.L().Error("ban lookup", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, localization.KeyInternalError)
		return
	}
	if ban != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":      h.text(c, localization.KeySessionBanned),
			"code":       localization.KeySessionBanned,
			"expires_at": ban.ExpiresAt,
		})
		return
	}

	now := time.Now().UTC()
	session := &models.UserSession{
		ID:                uuid.New().String(),
		IPAddress:         ip,
		Country:           strings.ToUpper(req.Country),
		DeviceType:        req.DeviceType,
		UserAgent:         c.Request.UserAgent(),
		DeviceFingerprint: req.DeviceFingerprint,
		Gender:            models.ParseGender(req.Gender),
		Interests:         pq.StringArray(normalizeInterests(req.Interests)),
		CreatedAt:         now,
		LastSeenAt:        now,
		IsActive:          true,
	}
	if pref := models.ParseGender(req.PreferredGender); pref != models.GenderUnspecified {
		session.PreferredGender = &pref
	}
	if err := h.Storage.CreateSession(session); err != nil {
		logging.L().Error("create session", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, localization.KeyInternalError)
		return
	}

	token, err := h.Tokens.Issue(session.ID)
	if err != nil {
		logging.L().Error("issue token", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, localization.KeyInternalError)
		return
	}

	logging.L().Info("session started",
		zap.String("session_id", session.ID),
		zap.String("device_type", string(session.DeviceType)))
	c.JSON(http.StatusOK, gin.H{
		"session_id":    session.ID,
		"session_token": token,
		"ice_servers":   h.ICEServers,
	})
}

func normalizeInterests(in []string) []string {
	cleaned := lo.Uniq(lo.FilterMap(in, func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
	if len(cleaned) > maxInterests {
		cleaned = cleaned[:maxInterests]
	}
	return cleaned
}

func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, localization.KeyBadRequest)
		return
	}
	session, err := h.resolveSession(req.SessionToken)
	if err != nil {
		h.authFailure(c, err)
		return
	}
	if err := h.Storage.TouchSession(session.ID); err != nil {
		logging.L().Warn("touch session", zap.String("session_id", session.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"online_users": h.Hub.Stats().OnlineCount,
	})
}

func (h *Handler) OnlineCount(c *gin.Context) {
	s := h.Hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"online_users":       s.OnlineCount,
		"in_queue":           s.QueueSize,
		"active_connections": s.ActiveConnections,
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

func (h *Handler) Report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, localization.KeyBadRequest)
		return
	}
	session, err := h.resolveSession(req.SessionToken)
	if err != nil {
		h.authFailure(c, err)
		return
	}

	out, err := h.Reports.HandleReport(moderation.ReportInput{
		ReporterSessionID: session.ID,
		ConnectionID:      req.ConnectionID,
		ReportedSessionID: req.ReportedSessionID,
		Reason:            req.Reason,
		Description:       req.Description,
	})
	switch {
	case err == nil:
	case errors.Is(err, moderation.ErrInvalidReason):
		h.fail(c, http.StatusBadRequest, localization.KeyReportBadReason)
		return
	case errors.Is(err, moderation.ErrSelfReport):
		h.fail(c, http.StatusBadRequest, localization.KeyReportSelf)
		return
	case errors.Is(err, moderation.ErrTargetMismatch):
		h.fail(c, http.StatusBadRequest, localization.KeyReportNoTarget)
		return
	case errors.Is(err, moderation.ErrNoReportTarget):
		h.fail(c, http.StatusNotFound, localization.KeyReportNoTarget)
		return
	default:
		logging.L().Error("handle report", zap.String("session_id", session.ID), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, localization.KeyInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"report_id": out.Report.ID,
		"message":   h.text(c, localization.KeyReportReceived),
	})
}

func (h *Handler) authFailure(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidToken) {
		h.fail(c, http.StatusUnauthorized, localization.KeySessionInvalid)
		return
	}
	logging.L().Error("resolve session", zap.Error(err))
	h.fail(c, http.StatusInternalServerError, localization.KeyInternalError)
}
