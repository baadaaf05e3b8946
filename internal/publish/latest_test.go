package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorindex/internal/contracts"
)

func value(code string, index float64) contracts.SectorIndexValue {
	return contracts.SectorIndexValue{SectorCode: code, Index: index, Timestamp: time.Now()}
}

func TestLatestStore_ReplacesWholesale(t *testing.T) {
	store := NewLatestStore()

	got, updatedAt := store.Get()
	assert.Empty(t, got)
	assert.True(t, updatedAt.IsZero())

	require.NoError(t, store.PublishIndices(context.Background(), []contracts.SectorIndexValue{
		value("BANK", 101), value("PHRM", 99),
	}))

	got, updatedAt = store.Get()
	assert.Len(t, got, 2)
	assert.False(t, updatedAt.IsZero())

	// The next publish replaces, it does not merge.
	require.NoError(t, store.PublishIndices(context.Background(), []contracts.SectorIndexValue{
		value("BANK", 102),
	}))

	got, _ = store.Get()
	assert.Len(t, got, 1)
	assert.Equal(t, 102.0, got["BANK"].Index)
}

func TestLatestStore_GetReturnsCopy(t *testing.T) {
	store := NewLatestStore()
	require.NoError(t, store.PublishIndices(context.Background(), []contracts.SectorIndexValue{
		value("BANK", 101),
	}))

	got, _ := store.Get()
	got["BANK"] = value("BANK", 999)

	again, _ := store.Get()
	assert.Equal(t, 101.0, again["BANK"].Index)
}

type recordingPublisher struct {
	calls int
	err   error
}

func (r *recordingPublisher) PublishIndices(_ context.Context, _ []contracts.SectorIndexValue) error {
	r.calls++
	return r.err
}

func TestMulti_DeliversToAllDespiteFailures(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("sink down")}
	ok := &recordingPublisher{}

	multi := NewMulti(failing, ok)
	err := multi.PublishIndices(context.Background(), []contracts.SectorIndexValue{value("BANK", 101)})

	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}
