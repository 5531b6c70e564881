package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"omechat/backend/internal/chathub"
	"omechat/backend/internal/localization"
	"omechat/backend/internal/logging"
	"omechat/backend/internal/moderation"
	"omechat/backend/internal/storage"
)

// ReportHandler is the moderation entry point used by POST /public/report.
type ReportHandler interface {
	HandleReport(in moderation.ReportInput) (*moderation.Outcome, error)
}

// Handler містить посилання на ChatHub і на колабораторів шлюзу.
type Handler struct {
	Hub            *chathub.ManagerService
	Storage        storage.Storage
	Tokens         *TokenIssuer
	Reports        ReportHandler
	Localizer      *localization.Localizer
	ICEServers     []webrtc.ICEServer
	SendBufferSize int
}

func NewHandler(hub *chathub.ManagerService, st storage.Storage, tokens *TokenIssuer, reports ReportHandler) *Handler {
	return &Handler{
		Hub:            hub,
		Storage:        st,
		Tokens:         tokens,
		Reports:        reports,
		SendBufferSize: 256,
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *gin.Engine) {
	public := r.Group("/public")
	public.POST("/session/start", h.StartSession)
	public.POST("/session/heartbeat", h.Heartbeat)
	public.GET("/online-count", h.OnlineCount)
	public.GET("/health", h.Health)
	public.POST("/report", h.Report)

	r.GET("/ws/signaling", h.ServeWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// lang picks the response language from Accept-Language.
func (h *Handler) lang(c *gin.Context) string {
	if h.Localizer == nil {
		return localization.DefaultLanguage
	}
	return h.Localizer.Resolve(c.GetHeader("Accept-Language"))
}

func (h *Handler) text(c *gin.Context, key string) string {
	if h.Localizer == nil {
		return key
	}
	return h.Localizer.GetString(h.lang(c), key)
}

func (h *Handler) fail(c *gin.Context, status int, key string) {
	c.AbortWithStatusJSON(status, gin.H{"error": h.text(c, key), "code": key})
}

// RequestLogger logs one line per request through the global zap logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.L().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
