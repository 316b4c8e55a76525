// Package store persists completed simulated tasks to SQLite.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dualsched/internal/sched"
)

// TaskRecord is one completed task of one engine session.
type TaskRecord struct {
	ID           uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID        string    `json:"run_id" gorm:"not null;size:36;index"`
	Strategy     string    `json:"strategy" gorm:"not null;size:16"`
	TaskID       uint64    `json:"task_id" gorm:"not null"`
	Name         string    `json:"name" gorm:"size:255"`
	Class        string    `json:"class" gorm:"size:32"`
	Policy       string    `json:"policy" gorm:"size:32"`
	ArrivalMS    int64     `json:"arrival_ms"`
	StartMS      int64     `json:"start_ms"`
	CompletionMS int64     `json:"completion_ms"`
	BurstMS      int64     `json:"burst_ms"`
	WaitMS       int64     `json:"wait_ms"`
	ResponseMS   int64     `json:"response_ms"`
	TurnaroundMS int64     `json:"turnaround_ms"`
	Nice         int       `json:"nice"`
	Priority     int       `json:"priority"`
	Preemptions  int       `json:"preemptions"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Store writes task records under a run id chosen at Open.
type Store struct {
	db    *gorm.DB
	runID string
}

// Open connects to the SQLite database at path and migrates it.
func Open(path string) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	db, err := gorm.Open(sqlite.Open(path), config)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the records of this session.
func (s *Store) RunID() string { return s.runID }

// Record implements sched.Recorder.
func (s *Store) Record(r sched.Record) error {
	row := TaskRecord{
		RunID:        s.runID,
		Strategy:     r.Strategy.String(),
		TaskID:       uint64(r.ID),
		Name:         r.Name,
		Class:        r.ClassName,
		Policy:       r.PolicyName,
		ArrivalMS:    r.Arrival,
		StartMS:      r.Start,
		CompletionMS: r.Completion,
		BurstMS:      r.Burst,
		WaitMS:       r.Wait,
		ResponseMS:   r.Response,
		TurnaroundMS: r.Turnaround,
		Nice:         r.Nice,
		Priority:     r.Priority,
		Preemptions:  r.Preemptions,
	}
	return s.db.Create(&row).Error
}

// List returns the records of runID in completion order; empty runID means
// every run.
func (s *Store) List(runID string) ([]TaskRecord, error) {
	var rows []TaskRecord
	query := s.db.Model(&TaskRecord{})
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
