// Package signallog persists scan runs and per-ticker decisions to SQLite so
// past screenings stay queryable after the markdown reports are archived.
package signallog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run summarizes one scan or sell invocation.
type Run struct {
	ID           string
	Kind         string // "buy" or "sell"
	Provider     string
	StrategyMode string
	Universe     int
	Candidates   int
	ReportPath   string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Decision is one ticker's outcome within a run. Buy runs fill Score and
// Pattern; sell runs fill Action. Reasons carries the rule trail either way.
type Decision struct {
	Ticker     string
	Name       string
	Accepted   bool
	Action     string
	Pattern    string
	EntryState string
	Score      float64
	Price      float64
	EvalDate   string
	Reasons    []string
}

type runModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	Kind          string `gorm:"column:kind;index"`
	Provider      string `gorm:"column:provider"`
	StrategyMode  string `gorm:"column:strategy_mode"`
	Universe      int    `gorm:"column:universe"`
	Candidates    int    `gorm:"column:candidates"`
	ReportPath    string `gorm:"column:report_path"`
	StartedAtUnix int64  `gorm:"column:started_at"`
	DurationMS    int64  `gorm:"column:duration_ms"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
}

func (runModel) TableName() string { return "signal_runs" }

type decisionModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;index"`
	Ticker        string         `gorm:"column:ticker;index"`
	Name          string         `gorm:"column:name"`
	Accepted      int            `gorm:"column:accepted"`
	Action        string         `gorm:"column:action"`
	Pattern       string         `gorm:"column:pattern"`
	EntryState    string         `gorm:"column:entry_state"`
	Score         float64        `gorm:"column:score"`
	Price         float64        `gorm:"column:price"`
	EvalDate      string         `gorm:"column:eval_date"`
	ReasonsJSON   datatypes.JSON `gorm:"column:reasons_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (decisionModel) TableName() string { return "signal_decisions" }

// Store wraps the Gorm + SQLite signal log.
type Store struct {
	db *gorm.DB
}

// Open creates (or migrates) the signal log at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("signal log path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create signal log dir failed: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &decisionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep the pool tiny, the CLI writes from one goroutine.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// RecordRun persists a run summary. A blank ID gets a generated one; the
// final ID is returned either way.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("signal log not initialized")
	}
	if strings.TrimSpace(run.ID) == "" {
		run.ID = NewRunID()
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	m := runModel{
		ID:            run.ID,
		Kind:          run.Kind,
		Provider:      run.Provider,
		StrategyMode:  run.StrategyMode,
		Universe:      run.Universe,
		Candidates:    run.Candidates,
		ReportPath:    run.ReportPath,
		StartedAtUnix: started.Unix(),
		DurationMS:    finished.Sub(started).Milliseconds(),
		CreatedAtUnix: time.Now().Unix(),
	}
	return run.ID, s.db.WithContext(ctx).Create(&m).Error
}

// RecordDecisions persists the per-ticker outcomes of one run.
func (s *Store) RecordDecisions(ctx context.Context, runID string, decisions []Decision) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("signal log not initialized")
	}
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is empty")
	}
	if len(decisions) == 0 {
		return nil
	}
	now := time.Now().Unix()
	models := make([]decisionModel, 0, len(decisions))
	for _, d := range decisions {
		accepted := 0
		if d.Accepted {
			accepted = 1
		}
		models = append(models, decisionModel{
			RunID:         runID,
			Ticker:        d.Ticker,
			Name:          d.Name,
			Accepted:      accepted,
			Action:        d.Action,
			Pattern:       d.Pattern,
			EntryState:    d.EntryState,
			Score:         d.Score,
			Price:         d.Price,
			EvalDate:      d.EvalDate,
			ReasonsJSON:   mustJSON(d.Reasons),
			CreatedAtUnix: now,
		})
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

// RecentRuns lists the newest runs of one kind; a blank kind lists all.
func (s *Store) RecentRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("signal log not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if strings.TrimSpace(kind) != "" {
		q = q.Where("kind = ?", kind)
	}
	var models []runModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(models))
	for _, m := range models {
		started := time.Unix(m.StartedAtUnix, 0)
		runs = append(runs, Run{
			ID:           m.ID,
			Kind:         m.Kind,
			Provider:     m.Provider,
			StrategyMode: m.StrategyMode,
			Universe:     m.Universe,
			Candidates:   m.Candidates,
			ReportPath:   m.ReportPath,
			StartedAt:    started,
			FinishedAt:   started.Add(time.Duration(m.DurationMS) * time.Millisecond),
		})
	}
	return runs, nil
}

// DecisionsForRun returns the stored outcomes of one run, accepted first.
func (s *Store) DecisionsForRun(ctx context.Context, runID string) ([]Decision, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("signal log not initialized")
	}
	var models []decisionModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("accepted DESC, score DESC, ticker ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	decisions := make([]Decision, 0, len(models))
	for _, m := range models {
		var reasons []string
		if len(m.ReasonsJSON) > 0 {
			_ = json.Unmarshal(m.ReasonsJSON, &reasons)
		}
		decisions = append(decisions, Decision{
			Ticker:     m.Ticker,
			Name:       m.Name,
			Accepted:   m.Accepted != 0,
			Action:     m.Action,
			Pattern:    m.Pattern,
			EntryState: m.EntryState,
			Score:      m.Score,
			Price:      m.Price,
			EvalDate:   m.EvalDate,
			Reasons:    reasons,
		})
	}
	return decisions, nil
}

func mustJSON(v any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("[]")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
