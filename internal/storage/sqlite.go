// Package storage persists song fingerprints in SQLite and serves the
// descriptor lookups that narrow match candidates before scoring.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soundprint/audiodetective/internal/fingerprint"
)

// DefaultDBFile is the database file used when no path is configured.
const DefaultDBFile = "audiodetective.sqlite3"

// searchChunkSize bounds the number of descriptors per IN query so large
// query fingerprints do not exceed SQLite's variable limit.
const searchChunkSize = 500

// Song is a stored recording.
type Song struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Title     string `gorm:"index:idx_song_title"`
	CreatedAt time.Time
}

// landmark is one (descriptor, anchor time) occurrence of a song fingerprint.
type landmark struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Descriptor string `gorm:"index:idx_landmark_descriptor;uniqueIndex:idx_landmark_unique,priority:1"`
	Time       int    `gorm:"uniqueIndex:idx_landmark_unique,priority:2"`
	SongID     string `gorm:"type:varchar(36);index:idx_landmark_song;uniqueIndex:idx_landmark_unique,priority:3"`
}

func (landmark) TableName() string { return "landmarks" }

// Store is a SQLite-backed fingerprint index.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open opens or creates the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &landmark{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db, sqlDB: sqlDB}, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Insert stores a song title with its fingerprint and returns the new song ID.
func (s *Store) Insert(title string, fp fingerprint.Fingerprint) (string, error) {
	songID := uuid.NewString()
	rows := make([]landmark, 0, len(fp))
	for descriptor, times := range fp {
		key := descriptor.String()
		for t := range times {
			rows = append(rows, landmark{Descriptor: key, Time: t, SongID: songID})
		}
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Song{ID: songID, Title: title}).Error; err != nil {
			return fmt.Errorf("creating song: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("batch insert landmarks: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return songID, nil
}

// Search finds songs sharing descriptors with the query fingerprint. The
// result maps each candidate song ID to the subset of its stored fingerprint
// restricted to descriptors shared with the query; candidates sharing fewer
// than minShared descriptors are excluded.
func (s *Store) Search(fp fingerprint.Fingerprint, minShared int) (map[string]fingerprint.Fingerprint, error) {
	descriptors := make([]string, 0, len(fp))
	for d := range fp {
		descriptors = append(descriptors, d.String())
	}

	candidates := make(map[string]fingerprint.Fingerprint)
	for start := 0; start < len(descriptors); start += searchChunkSize {
		end := start + searchChunkSize
		if end > len(descriptors) {
			end = len(descriptors)
		}
		var rows []landmark
		if err := s.db.Where("descriptor IN ?", descriptors[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("searching landmarks: %w", err)
		}
		for _, row := range rows {
			descriptor, err := fingerprint.ParseDescriptor(row.Descriptor)
			if err != nil {
				return nil, fmt.Errorf("stored landmark: %w", err)
			}
			candidate, ok := candidates[row.SongID]
			if !ok {
				candidate = make(fingerprint.Fingerprint)
				candidates[row.SongID] = candidate
			}
			candidate.Add(descriptor, row.Time)
		}
	}

	for songID, candidate := range candidates {
		if len(candidate) < minShared {
			delete(candidates, songID)
		}
	}
	return candidates, nil
}

// Fingerprint reconstructs the full stored fingerprint of a song.
func (s *Store) Fingerprint(songID string) (fingerprint.Fingerprint, error) {
	var rows []landmark
	if err := s.db.Where("song_id = ?", songID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying landmarks: %w", err)
	}
	fp := make(fingerprint.Fingerprint)
	for _, row := range rows {
		descriptor, err := fingerprint.ParseDescriptor(row.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("stored landmark: %w", err)
		}
		fp.Add(descriptor, row.Time)
	}
	return fp, nil
}

// Title returns the title of a song.
func (s *Store) Title(songID string) (string, error) {
	var song Song
	if err := s.db.First(&song, "id = ?", songID).Error; err != nil {
		return "", fmt.Errorf("querying song %s: %w", songID, err)
	}
	return song.Title, nil
}

// Songs lists all stored songs ordered by title.
func (s *Store) Songs() ([]Song, error) {
	var songs []Song
	if err := s.db.Order("title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	return songs, nil
}

// Delete removes a song and its landmarks.
func (s *Store) Delete(songID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", songID).Delete(&landmark{}).Error; err != nil {
			return fmt.Errorf("deleting landmarks: %w", err)
		}
		if err := tx.Where("id = ?", songID).Delete(&Song{}).Error; err != nil {
			return fmt.Errorf("deleting song: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored songs.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&Song{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return count, nil
}
