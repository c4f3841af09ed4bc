package traffic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_ConcurrentMoves(t *testing.T) {
	t.Parallel()
	const clients = 8
	c := NewController(NewControlLogic(NewArea(2, 10, clients)))
	target := NewCoordinate(9, 2)

	for id := ClientID(0); id < clients; id++ {
		_, err := c.Start(id)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for id := ClientID(0); id < clients; id++ {
		wg.Add(1)
		go func(id ClientID) {
			defer wg.Done()
			for i := 0; i < 30; i++ {
				if _, err := c.MoveTo(id, target); err != nil {
					t.Errorf("client %d: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	assertGridInvariants(t, c.Grid(), 2)
	assert.Equal(t, clients, c.Grid().Occupied())
}

func TestController_Introspection(t *testing.T) {
	t.Parallel()
	c := NewController(NewControlLogic(NewArea(1, 2, 2)))

	capacity, width, height := c.Dimensions()
	assert.Equal(t, []int{1, 2, 2}, []int{capacity, width, height})
	assert.True(t, c.IsFree(NewCoordinate(0, 0)))
	assert.False(t, c.IsFree(NewCoordinate(5, 5)), "out of bounds is never free")
	assert.False(t, c.Contains(NewCoordinate(2, 0)))

	_, err := c.Start(4)
	require.NoError(t, err)
	pos, ok := c.Position(4)
	require.True(t, ok)
	assert.Equal(t, NewCoordinate(0, 0), pos)
	assert.False(t, c.IsFree(pos))
	assert.Contains(t, c.Dump(), "############## AREA ###############")

	snapshot := c.Grid()
	c.Clear()
	_, ok = c.Position(4)
	assert.False(t, ok)

	require.NoError(t, c.SetGrid(snapshot))
	_, ok = c.Position(4)
	assert.True(t, ok)

	err = c.Do(func(l *ControlLogic) error {
		_, err := l.MoveTo(4, NewCoordinate(1, 1))
		return err
	})
	require.NoError(t, err)
	pos, _ = c.Position(4)
	assert.Equal(t, NewCoordinate(1, 1), pos)
}
