package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/traffic-control/internal/traffic"
)

func TestSnapshotStore_InsertGet(t *testing.T) {
	db := openTestDB(t)
	s := NewSnapshotStore(db)

	blob, err := EncodeGrid(traffic.NewGrid(1, 2, 2))
	require.NoError(t, err)

	snap := &Snapshot{Capacity: 1, Width: 2, Height: 2, GridBlob: blob}
	require.NoError(t, s.InsertSnapshot(snap))
	assert.NotEmpty(t, snap.SnapshotID)
	assert.NotZero(t, snap.TakenUnixNanos)
	assert.Equal(t, "manual", snap.Reason)

	got, err := s.GetSnapshot(snap.SnapshotID)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotStore_NotFound(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))

	_, err := s.GetSnapshot("missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	assert.ErrorIs(t, s.Delete("missing"), ErrSnapshotNotFound)
}

func TestSnapshotStore_LatestListDelete(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	blob, err := EncodeGrid(traffic.NewGrid(1, 1, 1))
	require.NoError(t, err)

	for i, reason := range []string{"first", "second", "third"} {
		require.NoError(t, s.InsertSnapshot(&Snapshot{
			SnapshotID:     reason,
			TakenUnixNanos: int64(100 + i),
			Capacity:       1, Width: 1, Height: 1,
			GridBlob: blob,
			Reason:   reason,
		}))
	}

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "third", latest.SnapshotID)

	list, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].SnapshotID)
	assert.Equal(t, "second", list[1].SnapshotID)
	assert.Nil(t, list[0].GridBlob)

	require.NoError(t, s.Delete("third"))
	latest, err = s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "second", latest.SnapshotID)
}

func TestPersistRestore(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))

	area := traffic.NewArea(2, 3, 3)
	require.NoError(t, area.Place(4, traffic.NewCoordinate(1, 2)))
	require.NoError(t, area.Place(9, traffic.NewCoordinate(1, 2)))
	want := area.Grid()

	snap, err := Persist(area, s, "checkpoint")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.OccupiedSlots)
	assert.Equal(t, "checkpoint", snap.Reason)

	area.Clear()
	restored, err := Restore(area, s, snap.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, snap.SnapshotID, restored.SnapshotID)
	if diff := cmp.Diff(want, area.Grid()); diff != "" {
		t.Errorf("restored grid mismatch (-want +got):\n%s", diff)
	}
	pos, ok := area.Position(9)
	require.True(t, ok)
	assert.Equal(t, traffic.NewCoordinate(1, 2), pos)
}

func TestRestore_DimensionMismatch(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))

	small := traffic.NewArea(1, 2, 2)
	require.NoError(t, small.Place(1, traffic.NewCoordinate(0, 0)))
	snap, err := Persist(small, s, "")
	require.NoError(t, err)

	other := traffic.NewArea(1, 3, 2)
	require.NoError(t, other.Place(5, traffic.NewCoordinate(2, 1)))

	_, err = Restore(other, s, snap.SnapshotID)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	// The live grid is untouched.
	pos, ok := other.Position(5)
	assert.True(t, ok)
	assert.Equal(t, traffic.NewCoordinate(2, 1), pos)
}

type failingWriter struct{}

func (failingWriter) InsertSnapshot(*Snapshot) error { return errors.New("read-only") }

func TestPersist_WriterError(t *testing.T) {
	_, err := Persist(traffic.NewArea(1, 1, 1), failingWriter{}, "x")
	assert.EqualError(t, err, "read-only")
}
