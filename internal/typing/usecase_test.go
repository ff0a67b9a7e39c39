package typing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/infrastructure"
	"chat/internal/memory"
	"chat/internal/models"
	"chat/internal/typing"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []func()
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(_ time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, f)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fire runs every scheduled cleanup.
func (c *fakeClock) Fire() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func setup(t *testing.T) (*memory.Backend, *typing.UseCase, *fakeClock, string) {
	t.Helper()
	ctx := context.Background()
	backend := memory.NewBackend(nil)
	convID, err := backend.FindOrCreateDirect(ctx, &models.Conversation{
		ID:             "c1",
		Type:           models.ConversationDirect,
		ParticipantIDs: models.CanonicalPair("alice", "bob"),
		DirectKey:      models.DirectKey("alice", "bob"),
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.UnixMilli(100_000)}
	uc := typing.NewUseCase(backend, backend).WithClock(clock.Now, clock.After)
	return backend, uc, clock, convID
}

func timestamps(t *testing.T, backend *memory.Backend, convID string) map[string]int64 {
	t.Helper()
	indicators, err := backend.Indicators(context.Background(), convID)
	require.NoError(t, err)
	out := map[string]int64{}
	for _, ind := range indicators {
		out[ind.UserID] = ind.Timestamp
	}
	return out
}

func TestUpdateTypingStampsIndicator(t *testing.T) {
	backend, uc, clock, convID := setup(t)

	require.NoError(t, uc.UpdateTyping(context.Background(), convID, "alice", "Alice"))
	assert.Equal(t, map[string]int64{"alice": models.Millis(clock.Now())}, timestamps(t, backend, convID))
}

func TestCleanupClearsOnlyStaleIndicators(t *testing.T) {
	backend, uc, clock, convID := setup(t)
	ctx := context.Background()

	require.NoError(t, uc.UpdateTyping(ctx, convID, "alice", "Alice"))
	clock.Advance(time.Second)
	require.NoError(t, uc.UpdateTyping(ctx, convID, "bob", "Bob"))
	bobStamp := models.Millis(clock.Now())

	clock.Advance(2 * time.Second)
	clock.Fire()

	require.Eventually(t, func() bool {
		return timestamps(t, backend, convID)["alice"] == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, bobStamp, timestamps(t, backend, convID)["bob"])
}

func TestCleanupSparesRefreshedIndicator(t *testing.T) {
	backend, uc, clock, convID := setup(t)
	ctx := context.Background()

	require.NoError(t, uc.UpdateTyping(ctx, convID, "alice", "Alice"))
	clock.Advance(2 * time.Second)
	require.NoError(t, uc.UpdateTyping(ctx, convID, "alice", "Alice"))
	refreshed := models.Millis(clock.Now())

	clock.Advance(time.Second)
	// Only the first cleanup is due; it must leave the refreshed stamp alone.
	clock.mu.Lock()
	first := clock.pending[0]
	clock.pending = clock.pending[1:]
	clock.mu.Unlock()
	first()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, refreshed, timestamps(t, backend, convID)["alice"])
}

func TestUpdateTypingRejectsOutsiders(t *testing.T) {
	_, uc, _, convID := setup(t)

	assert.ErrorIs(t, uc.UpdateTyping(context.Background(), convID, "mallory", "M"), infrastructure.ErrNotParticipant)
	assert.ErrorIs(t, uc.UpdateTyping(context.Background(), "nope", "alice", "Alice"), infrastructure.ErrNotFound)
}

type failingRepo struct {
	typing.Repository
}

func (failingRepo) Upsert(context.Context, *models.TypingIndicator) error {
	return errors.New("connection refused")
}

func TestUpdateTypingSwallowsBackendFailure(t *testing.T) {
	backend, _, clock, convID := setup(t)
	uc := typing.NewUseCase(failingRepo{backend}, backend).WithClock(clock.Now, clock.After)

	assert.NoError(t, uc.UpdateTyping(context.Background(), convID, "alice", "Alice"))
	assert.Empty(t, clock.pending)
}

type failingMembership struct{}

func (failingMembership) ConversationByID(context.Context, string) (*models.Conversation, error) {
	return nil, infrastructure.Unavailable("conversation by id", errors.New("connection refused"))
}

func TestUpdateTypingSwallowsMembershipFailure(t *testing.T) {
	backend, _, clock, convID := setup(t)
	uc := typing.NewUseCase(backend, failingMembership{}).WithClock(clock.Now, clock.After)

	assert.NoError(t, uc.UpdateTyping(context.Background(), convID, "alice", "Alice"))
	assert.Empty(t, clock.pending)
	assert.Empty(t, timestamps(t, backend, convID))
}

func TestActiveUsernames(t *testing.T) {
	now := time.UnixMilli(50_000)
	indicators := []*models.TypingIndicator{
		{UserID: "alice", Username: "Alice", Timestamp: 49_000},
		{UserID: "bob", Username: "Bob", Timestamp: 47_000},
		{UserID: "carol", Username: "Carol", Timestamp: 0},
		{UserID: "dave", Username: "Dave", Timestamp: 47_001},
	}

	assert.Equal(t, []string{"Alice", "Dave"}, typing.ActiveUsernames(indicators, "", now))
	assert.Equal(t, []string{"Dave"}, typing.ActiveUsernames(indicators, "alice", now))
	assert.Empty(t, typing.ActiveUsernames(nil, "", now))
}
