package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/traffic-control/internal/traffic"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot has the requested id.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrDimensionMismatch is returned when a snapshot's shape differs from the live area.
	ErrDimensionMismatch = errors.New("snapshot dimensions do not match area")
)

// Snapshot matches the area_snapshots table.
type Snapshot struct {
	SnapshotID     string `json:"snapshot_id"`
	TakenUnixNanos int64  `json:"taken_unix_nanos"`
	Capacity       int    `json:"capacity"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	GridBlob       []byte `json:"-"`
	OccupiedSlots  int    `json:"occupied_slots"`
	Reason         string `json:"reason"`
}

// SnapshotWriter persists snapshots. Implemented by SnapshotStore.
type SnapshotWriter interface {
	InsertSnapshot(s *Snapshot) error
}

// SnapshotReader loads snapshots by id. Implemented by SnapshotStore.
type SnapshotReader interface {
	GetSnapshot(id string) (*Snapshot, error)
}

// SnapshotStore provides persistence for area snapshots.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db.DB}
}

// InsertSnapshot persists a snapshot. If SnapshotID is empty, a UUID is generated.
func (s *SnapshotStore) InsertSnapshot(snap *Snapshot) error {
	if snap.SnapshotID == "" {
		snap.SnapshotID = uuid.New().String()
	}
	if snap.TakenUnixNanos == 0 {
		snap.TakenUnixNanos = time.Now().UnixNano()
	}
	if snap.Reason == "" {
		snap.Reason = "manual"
	}

	_, err := s.db.Exec(`
		INSERT INTO area_snapshots (
			snapshot_id, taken_unix_nanos, capacity, width, height,
			grid_blob, occupied_slots, snapshot_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotID, snap.TakenUnixNanos, snap.Capacity, snap.Width, snap.Height,
		snap.GridBlob, snap.OccupiedSlots, snap.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `snapshot_id, taken_unix_nanos, capacity, width, height,
	grid_blob, occupied_slots, snapshot_reason`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	if err := row.Scan(
		&snap.SnapshotID, &snap.TakenUnixNanos, &snap.Capacity, &snap.Width, &snap.Height,
		&snap.GridBlob, &snap.OccupiedSlots, &snap.Reason,
	); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetSnapshot returns the snapshot with the given id.
func (s *SnapshotStore) GetSnapshot(id string) (*Snapshot, error) {
	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM area_snapshots WHERE snapshot_id = ?`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Latest returns the most recently taken snapshot.
func (s *SnapshotStore) Latest() (*Snapshot, error) {
	row := s.db.QueryRow(`SELECT ` + snapshotColumns + ` FROM area_snapshots
		ORDER BY taken_unix_nanos DESC, rowid DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return snap, nil
}

// List returns up to limit snapshots, newest first. Grid blobs are not loaded.
func (s *SnapshotStore) List(limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT snapshot_id, taken_unix_nanos, capacity, width, height, occupied_slots, snapshot_reason
		FROM area_snapshots
		ORDER BY taken_unix_nanos DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(
			&snap.SnapshotID, &snap.TakenUnixNanos, &snap.Capacity, &snap.Width, &snap.Height,
			&snap.OccupiedSlots, &snap.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

// Delete removes a snapshot.
func (s *SnapshotStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM area_snapshots WHERE snapshot_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}

// Persist serialises the area's grid and writes it through w.
func Persist(area *traffic.Area, w SnapshotWriter, reason string) (*Snapshot, error) {
	g := area.Grid()
	blob, err := EncodeGrid(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode grid: %w", err)
	}

	snap := &Snapshot{
		TakenUnixNanos: time.Now().UnixNano(),
		Capacity:       area.Capacity(),
		Width:          area.Width(),
		Height:         area.Height(),
		GridBlob:       blob,
		OccupiedSlots:  g.Occupied(),
		Reason:         reason,
	}
	if err := w.InsertSnapshot(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore loads snapshot id through r and replaces the area's grid with it.
// The area is untouched if the snapshot cannot be loaded or has another shape.
func Restore(area *traffic.Area, r SnapshotReader, id string) (*Snapshot, error) {
	snap, err := r.GetSnapshot(id)
	if err != nil {
		return nil, err
	}
	if snap.Capacity != area.Capacity() || snap.Width != area.Width() || snap.Height != area.Height() {
		return nil, fmt.Errorf("%w: snapshot %s is %dx%dx%d, area is %dx%dx%d", ErrDimensionMismatch,
			snap.SnapshotID, snap.Width, snap.Height, snap.Capacity,
			area.Width(), area.Height(), area.Capacity())
	}

	g, err := DecodeGrid(snap.GridBlob)
	if err != nil {
		return nil, err
	}
	if err := area.SetGrid(g); err != nil {
		return nil, fmt.Errorf("failed to restore snapshot %s: %w", snap.SnapshotID, err)
	}
	return snap, nil
}
