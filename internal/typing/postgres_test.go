//go:build container

package typing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/internal/models"
	"chat/internal/testhelpers"
	"chat/internal/typing"
)

func TestPostgresClearIfOlder(t *testing.T) {
	pg := testhelpers.StartPostgres(t)
	ctx := context.Background()
	s := typing.NewTypingPostgresStorage(pg.DB)

	require.NoError(t, s.Upsert(ctx, &models.TypingIndicator{ConversationID: "c1", UserID: "alice", Username: "Alice", Timestamp: 10_000}))
	require.NoError(t, s.Upsert(ctx, &models.TypingIndicator{ConversationID: "c1", UserID: "bob", Username: "Bob", Timestamp: 12_000}))

	stamps := func() map[string]int64 {
		indicators, err := s.Indicators(ctx, "c1")
		require.NoError(t, err)
		out := map[string]int64{}
		for _, ind := range indicators {
			out[ind.UserID] = ind.Timestamp
		}
		return out
	}

	// Refreshed after the cutoff: left alone.
	require.NoError(t, s.ClearIfOlder(ctx, "c1", "alice", 9_999))
	assert.Equal(t, int64(10_000), stamps()["alice"])

	require.NoError(t, s.ClearIfOlder(ctx, "c1", "alice", 10_000))
	assert.Equal(t, map[string]int64{"alice": 0, "bob": 12_000}, stamps())

	require.NoError(t, s.ClearIfOlder(ctx, "c1", "alice", 20_000))
	require.NoError(t, s.ClearIfOlder(ctx, "c1", "nobody", 20_000))

	require.NoError(t, s.Upsert(ctx, &models.TypingIndicator{ConversationID: "c1", UserID: "alice", Username: "Alice", Timestamp: 30_000}))
	assert.Equal(t, int64(30_000), stamps()["alice"])
}
