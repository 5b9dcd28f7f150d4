// Package cache keeps loudness measurements in a SQLite database so that
// unchanged files are not re-analysed.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/linuxmatters/levelset/internal/loudness"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const errStoreNil = "cache store is nil"

// Key identifies one measurement of one version of a file
type Key struct {
	Path    string // absolute
	Size    int64
	ModTime time.Time
	Meter   string
}

// KeyFor builds a cache key from the file's current size and modification time.
func KeyFor(path, meter string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Key{}, err
	}
	return Key{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Meter:   meter,
	}, nil
}

// entry is the stored row. Infinite readings (silence) are kept as NULL.
type entry struct {
	Path         string `gorm:"primaryKey"`
	Meter        string `gorm:"primaryKey"`
	Size         int64
	ModTimeNanos int64
	Integrated   sql.NullFloat64
	MaxMomentary sql.NullFloat64
	MaxShortTerm sql.NullFloat64
	TruePeak     sql.NullFloat64
	Approximated bool
	MeasuredAt   time.Time
}

func (entry) TableName() string {
	return "measurements"
}

// Store is a gorm handle on the measurement database
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// SQLite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&entry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the stored measurement for key. A row recorded for a
// different size or modification time is stale and reported as a miss.
func (s *Store) Lookup(key Key) (loudness.Measurement, bool, error) {
	if s == nil || s.DB == nil {
		return loudness.Measurement{}, false, errors.New(errStoreNil)
	}

	var e entry
	err := s.DB.Where("path = ? AND meter = ?", key.Path, key.Meter).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loudness.Measurement{}, false, nil
	}
	if err != nil {
		return loudness.Measurement{}, false, fmt.Errorf("querying cache: %w", err)
	}

	if e.Size != key.Size || e.ModTimeNanos != key.ModTime.UnixNano() {
		return loudness.Measurement{}, false, nil
	}

	return loudness.Measurement{
		Integrated:   fromNull(e.Integrated),
		MaxMomentary: fromNull(e.MaxMomentary),
		MaxShortTerm: fromNull(e.MaxShortTerm),
		TruePeak:     fromNull(e.TruePeak),
		Approximated: e.Approximated,
	}, true, nil
}

// Save records m for key, replacing any earlier row for the same path and meter.
func (s *Store) Save(key Key, m loudness.Measurement) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}

	e := entry{
		Path:         key.Path,
		Meter:        key.Meter,
		Size:         key.Size,
		ModTimeNanos: key.ModTime.UnixNano(),
		Integrated:   toNull(m.Integrated),
		MaxMomentary: toNull(m.MaxMomentary),
		MaxShortTerm: toNull(m.MaxShortTerm),
		TruePeak:     toNull(m.TruePeak),
		Approximated: m.Approximated,
		MeasuredAt:   time.Now(),
	}

	err := s.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("saving measurement: %w", err)
	}
	return nil
}

// Purge deletes every stored measurement and returns how many were removed.
func (s *Store) Purge() (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New(errStoreNil)
	}
	res := s.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging cache: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of stored measurements
func (s *Store) Count() (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New(errStoreNil)
	}
	var n int64
	if err := s.DB.Model(&entry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting cache: %w", err)
	}
	return n, nil
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// NULL reads back as -Inf: the only non-finite value a measurement produces
func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(-1)
	}
	return v.Float64
}
