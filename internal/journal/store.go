package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one applied board event.
type Entry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Kind       string    `json:"kind" gorm:"size:32;not null"`
	EntityID   string    `json:"entity_id" gorm:"size:190;not null;index"`
	MatchID    string    `json:"match_id,omitempty" gorm:"size:190;index"`
	Points     *int      `json:"points,omitempty"`
	Spot       string    `json:"spot,omitempty" gorm:"size:16"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index"`
}

func (Entry) TableName() string {
	return "score_journal"
}

type Store interface {
	Save(ctx context.Context, entries []Entry) error
	// History returns the newest entries about id, as entity or as match.
	History(ctx context.Context, id string, limit int) ([]Entry, error)
	Close() error
}

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the journal table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

func (s *GormStore) History(ctx context.Context, id string, limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.WithContext(ctx).
		Where("entity_id = ? OR match_id = ?", id, id).
		Order("recorded_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
