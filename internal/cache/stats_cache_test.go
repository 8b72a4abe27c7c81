package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkquest/internal/models"
)

func TestSnapshotEncoding(t *testing.T) {
	in := &models.StatsSnapshot{
		UserID:        "c1",
		TotalXP:       1050,
		Level:         2,
		CurrentStreak: 3,
		BestStreak:    4,
		LastPractice:  models.NewDate(2024, time.March, 10),
	}

	data, err := encodeSnapshot(in)
	require.NoError(t, err)

	out, err := decodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, in.TotalXP, out.TotalXP)
	assert.Equal(t, in.Level, out.Level)
	assert.True(t, in.LastPractice.Equal(out.LastPractice))

	_, err = decodeSnapshot([]byte("{not json"))
	assert.ErrorIs(t, err, ErrCacheSerialization)
}

func TestStatsKey(t *testing.T) {
	assert.Equal(t, "talkquest:stats:abc", statsKey("abc"))
}

// TestRedisStatsCache runs against a live server when TEST_REDIS_URL is set
func TestRedisStatsCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisStatsCache(client)
	userID := "test-" + time.Now().Format("150405.000000")

	_, ok, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, &models.StatsSnapshot{UserID: userID, TotalXP: 7, Level: 1}, time.Minute))

	got, ok, err := c.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.TotalXP)

	require.NoError(t, c.Invalidate(ctx, userID))
	_, ok, err = c.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}
