package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/traffic-control/internal/sim"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("simulation run not found")

// Run matches the simulation_runs table.
type Run struct {
	RunID             string `json:"run_id"`
	StartedUnixNanos  int64  `json:"started_unix_nanos"`
	FinishedUnixNanos *int64 `json:"finished_unix_nanos,omitempty"`
	Capacity          int    `json:"capacity"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	Clients           int    `json:"clients"`
	Rounds            int    `json:"rounds"`
	Arrived           int    `json:"arrived"`
	Stalled           bool   `json:"stalled"`
	FinalSnapshotID   string `json:"final_snapshot_id,omitempty"`
}

// RunStore records simulation runs and their individual moves.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB}
}

// InsertRun persists the start of a run. If RunID is empty, a UUID is generated.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedUnixNanos == 0 {
		run.StartedUnixNanos = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO simulation_runs (run_id, started_unix_nanos, capacity, width, height, clients)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedUnixNanos, run.Capacity, run.Width, run.Height, run.Clients,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordMove appends one move to a run.
func (s *RunStore) RecordMove(runID string, m sim.Move) error {
	_, err := s.db.Exec(`
		INSERT INTO simulation_moves (
			run_id, round, client_id, from_x, from_y, to_x, to_y, target_x, target_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Round, int(m.Client), m.From.X, m.From.Y, m.To.X, m.To.Y, m.Target.X, m.Target.Y,
	)
	if err != nil {
		return fmt.Errorf("failed to record move for client %d in round %d: %w", m.Client, m.Round, err)
	}
	return nil
}

// FinishRun stores the outcome of a run. finalSnapshotID may be empty.
func (s *RunStore) FinishRun(runID string, res *sim.Result, finalSnapshotID string) error {
	var snapID interface{}
	if finalSnapshotID != "" {
		snapID = finalSnapshotID
	}
	out, err := s.db.Exec(`
		UPDATE simulation_runs
		SET finished_unix_nanos = ?, rounds = ?, arrived = ?, stalled = ?, final_snapshot_id = ?
		WHERE run_id = ?`,
		time.Now().UnixNano(), res.Rounds, len(res.Arrived), res.Stalled, snapID, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by id.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	var (
		run      Run
		finished sql.NullInt64
		snapID   sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT run_id, started_unix_nanos, finished_unix_nanos, capacity, width, height,
		       clients, rounds, arrived, stalled, final_snapshot_id
		FROM simulation_runs WHERE run_id = ?`, runID,
	).Scan(
		&run.RunID, &run.StartedUnixNanos, &finished, &run.Capacity, &run.Width, &run.Height,
		&run.Clients, &run.Rounds, &run.Arrived, &run.Stalled, &snapID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if finished.Valid {
		run.FinishedUnixNanos = &finished.Int64
	}
	run.FinalSnapshotID = snapID.String
	return &run, nil
}

// Moves returns every move of a run ordered by round, then client.
func (s *RunStore) Moves(runID string) ([]sim.Move, error) {
	rows, err := s.db.Query(`
		SELECT round, client_id, from_x, from_y, to_x, to_y, target_x, target_y
		FROM simulation_moves
		WHERE run_id = ?
		ORDER BY round, client_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query moves: %w", err)
	}
	defer rows.Close()

	var moves []sim.Move
	for rows.Next() {
		var (
			m  sim.Move
			id int
		)
		if err := rows.Scan(&m.Round, &id, &m.From.X, &m.From.Y, &m.To.X, &m.To.Y, &m.Target.X, &m.Target.Y); err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		m.Client = traffic.ClientID(id)
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// RunRecorder feeds a simulator's moves into one run of a RunStore.
type RunRecorder struct {
	store *RunStore
	runID string
}

// Recorder returns a sim.Recorder writing into runID.
func (s *RunStore) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// RecordMove implements sim.Recorder.
func (r *RunRecorder) RecordMove(m sim.Move) error {
	return r.store.RecordMove(r.runID, m)
}
