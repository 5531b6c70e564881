package storage

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"omechat/backend/internal/models"
)

// StatsChannel is the Redis channel (and key) carrying engine snapshots.
const StatsChannel = "omechat:stats"

// ErrNotFound is returned for lookups that match no row.
var ErrNotFound = errors.New("record not found")

type Storage interface {
	CreateSession(session *models.UserSession) error
	GetSession(id string) (*models.UserSession, error)
	TouchSession(id string) error

	RecordMatchStart(conn *models.Connection) error
	RecordMatchEnd(conn *models.Connection) error
	GetConnectionByID(id string) (*models.Connection, error)
	MarkConnectionReported(id string) error

	SaveReport(report *models.Report) error
	ListReportsAgainst(sessionID string, since time.Time) ([]models.Report, error)
	ListReports(status models.ReportStatus, limit int) ([]models.Report, error)
	UpdateReportStatus(id string, status models.ReportStatus) error

	CreateBan(ban *models.Ban) error
	DeactivateBan(id string) error
	CountBansSince(sessionID string, since time.Time) (int64, error)
	FindActiveBan(sessionID, ipAddress, fingerprint string) (*models.Ban, error)
	IsSessionBanned(sessionID string) (bool, error)

	PublishStats(ctx context.Context, stats models.OnlineStats) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context

	now func() time.Time
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
		now:   time.Now,
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}
	return errors.Wrapf(err, "load %s %s", what, id)
}

// --- sessions ---

func (s *Service) CreateSession(session *models.UserSession) error {
	return errors.Wrap(s.DB.Create(session).Error, "create session")
}

func (s *Service) GetSession(id string) (*models.UserSession, error) {
	var session models.UserSession
	if err := s.DB.First(&session, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "session", id)
	}
	return &session, nil
}

// TouchSession оновлює last_seen_at для heartbeat.
func (s *Service) TouchSession(id string) error {
	res := s.DB.Model(&models.UserSession{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("last_seen_at", s.now())
	if res.Error != nil {
		return errors.Wrapf(res.Error, "touch session %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "session %s", id)
	}
	return nil
}

// --- connection records ---

// RecordMatchStart inserts the connection row. If the end of the connection
// was persisted first, the existing row is kept.
func (s *Service) RecordMatchStart(conn *models.Connection) error {
	err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(conn).Error
	return errors.Wrapf(err, "record match start %s", conn.ID)
}

// RecordMatchEnd upserts the end columns, creating the row when the start
// record has not landed yet.
func (s *Service) RecordMatchEnd(conn *models.Connection) error {
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"ended_at", "ended_reason"}),
	}).Create(conn).Error
	return errors.Wrapf(err, "record match end %s", conn.ID)
}

func (s *Service) GetConnectionByID(id string) (*models.Connection, error) {
	var conn models.Connection
	if err := s.DB.First(&conn, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "connection", id)
	}
	return &conn, nil
}

func (s *Service) MarkConnectionReported(id string) error {
	err := s.DB.Model(&models.Connection{}).Where("id = ?", id).Update("reported", true).Error
	return errors.Wrapf(err, "mark connection %s reported", id)
}

// --- reports ---

func (s *Service) SaveReport(report *models.Report) error {
	return errors.Wrap(s.DB.Create(report).Error, "save report")
}

func (s *Service) ListReportsAgainst(sessionID string, since time.Time) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.Where("reported_session_id = ? AND created_at >= ?", sessionID, since).
		Order("created_at asc").
		Find(&reports).Error
	return reports, errors.Wrapf(err, "list reports against %s", sessionID)
}

// ListReports returns the newest reports first; an empty status lists all.
func (s *Service) ListReports(status models.ReportStatus, limit int) ([]models.Report, error) {
	var reports []models.Report
	q := s.DB.Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reports).Error
	return reports, errors.Wrap(err, "list reports")
}

func (s *Service) UpdateReportStatus(id string, status models.ReportStatus) error {
	res := s.DB.Model(&models.Report{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"processed_at": s.now(),
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update report %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "report %s", id)
	}
	return nil
}

// --- bans ---

func banKey(sessionID string) string { return "ban:" + sessionID }

// banTTL is how long a ban stays cached: until it expires, or forever (0)
// for a permanent ban. ok is false for a ban that already expired.
func banTTL(ban *models.Ban, now time.Time) (ttl time.Duration, ok bool) {
	if ban.ExpiresAt == nil {
		return 0, true
	}
	ttl = ban.ExpiresAt.Sub(now)
	return ttl, ttl > 0
}

// CreateBan saves the ban and, for session bans, caches it in Redis.
func (s *Service) CreateBan(ban *models.Ban) error {
	if err := s.DB.Create(ban).Error; err != nil {
		return errors.Wrap(err, "create ban")
	}
	if ban.SessionID == nil || s.Redis == nil {
		return nil
	}
	ttl, ok := banTTL(ban, s.now())
	if !ok {
		return nil
	}
	err := s.Redis.Set(s.Ctx, banKey(*ban.SessionID), ban.ID, ttl).Err()
	return errors.Wrapf(err, "cache ban %s", ban.ID)
}

func (s *Service) DeactivateBan(id string) error {
	var ban models.Ban
	if err := s.DB.First(&ban, "id = ?", id).Error; err != nil {
		return notFound(err, "ban", id)
	}
	if err := s.DB.Model(&ban).Update("is_active", false).Error; err != nil {
		return errors.Wrapf(err, "deactivate ban %s", id)
	}
	if ban.SessionID != nil && s.Redis != nil {
		if err := s.Redis.Del(s.Ctx, banKey(*ban.SessionID)).Err(); err != nil {
			return errors.Wrapf(err, "evict ban %s", id)
		}
	}
	return nil
}

func (s *Service) CountBansSince(sessionID string, since time.Time) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Ban{}).
		Where("session_id = ? AND created_at >= ?", sessionID, since).
		Count(&n).Error
	return n, errors.Wrapf(err, "count bans for %s", sessionID)
}

// FindActiveBan returns the first effective ban matching any of the given
// identifiers; empty identifiers are ignored. A nil ban means none.
func (s *Service) FindActiveBan(sessionID, ipAddress, fingerprint string) (*models.Ban, error) {
	now := s.now()
	cond := s.DB.Where("1 = 0")
	if sessionID != "" {
		cond = cond.Or("session_id = ?", sessionID)
	}
	if ipAddress != "" {
		cond = cond.Or("ip_address = ?", ipAddress)
	}
	if fingerprint != "" {
		cond = cond.Or("device_fingerprint = ?", fingerprint)
	}

	var ban models.Ban
	err := s.DB.Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where(cond).
		Order("created_at desc").
		First(&ban).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find active ban")
	}
	return &ban, nil
}

// IsSessionBanned перевіряє статус бану в Redis, з fallback на PostgreSQL.
func (s *Service) IsSessionBanned(sessionID string) (bool, error) {
	if s.Redis != nil {
		_, err := s.Redis.Get(s.Ctx, banKey(sessionID)).Result()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, redis.Nil) {
			return false, errors.Wrap(err, "read ban cache")
		}
	}
	ban, err := s.FindActiveBan(sessionID, "", "")
	if err != nil {
		return false, err
	}
	return ban != nil, nil
}

// --- stats ---

// PublishStats публікує знімок у Redis Pub/Sub і зберігає останній під тим
// самим ключем, щоб його могли прочитати інші процеси.
func (s *Service) PublishStats(ctx context.Context, stats models.OnlineStats) error {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "encode stats")
	}
	pipe := s.Redis.TxPipeline()
	pipe.Set(ctx, StatsChannel, payload, 0)
	pipe.Publish(ctx, StatsChannel, payload)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "publish stats")
}

var _ Storage = (*Service)(nil)
