package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/liamashdown/polysignal/internal/metrics"
)

// Entry is one cached response row
type Entry struct {
	KeyHash   string `gorm:"primaryKey;size:64"`
	CacheKey  string `gorm:"type:text;not null"`
	Value     []byte `gorm:"not null"`
	ExpiresAt int64  `gorm:"not null;index"` // unix seconds, 0 = never
	UpdatedTS int64  `gorm:"not null"`
}

func (Entry) TableName() string {
	return "cache_entries"
}

// GormStore keeps entries in a relational table (sqlite on disk by default,
// mysql when several processes share one cache).
type GormStore struct {
	conn *gorm.DB
	log  *logrus.Logger
	now  func() time.Time
}

// NewSQLite opens (creating if needed) a sqlite cache file at path
func NewSQLite(path string, log *logrus.Logger) (*GormStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	dsn := "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	return openGorm(sqlite.Open(dsn), log)
}

// NewMySQL connects to a shared mysql cache
func NewMySQL(dsn string, log *logrus.Logger) (*GormStore, error) {
	return openGorm(mysql.Open(dsn), log)
}

func openGorm(dialector gorm.Dialector, log *logrus.Logger) (*GormStore, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if err := conn.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate cache table: %w", err)
	}

	log.WithField("dialect", dialector.Name()).Debug("Cache database ready")

	return &GormStore{conn: conn, log: log, now: time.Now}, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get returns a live entry's value
func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()

	var entry Entry
	err := s.conn.WithContext(ctx).
		Where("key_hash = ? AND (expires_at = 0 OR expires_at > ?)", hashKey(key), s.now().Unix()).
		First(&entry).Error
	metrics.RecordCacheQuery("get", time.Since(start), ignoreNotFound(err))

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return entry.Value, true, nil
}

// Set upserts an entry
func (s *GormStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()

	now := s.now()
	entry := Entry{
		KeyHash:   hashKey(key),
		CacheKey:  key,
		Value:     value,
		UpdatedTS: now.Unix(),
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl).Unix()
	}

	err := s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"cache_key", "value", "expires_at", "updated_ts"}),
	}).Create(&entry).Error
	metrics.RecordCacheQuery("set", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Clear deletes every entry
func (s *GormStore) Clear(ctx context.Context) error {
	err := s.conn.WithContext(ctx).Where("1 = 1").Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Prune deletes expired entries
func (s *GormStore) Prune(ctx context.Context) (int64, error) {
	start := time.Now()
	result := s.conn.WithContext(ctx).
		Where("expires_at > 0 AND expires_at <= ?", s.now().Unix()).
		Delete(&Entry{})
	metrics.RecordCacheQuery("prune", time.Since(start), result.Error)

	if result.Error != nil {
		return 0, fmt.Errorf("cache prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
