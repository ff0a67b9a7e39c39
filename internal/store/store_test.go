package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat/internal/models"
)

type mapPrefs struct {
	mu      sync.Mutex
	values  map[string]string
	saveErr error
}

func newMapPrefs() *mapPrefs {
	return &mapPrefs{values: map[string]string{}}
}

func (p *mapPrefs) Load(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *mapPrefs) Save(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.values[key] = value
	return nil
}

func TestThemeDefaultsToDark(t *testing.T) {
	s := NewChatStore(newMapPrefs())
	s.SetCurrentUser(context.Background(), &models.User{ID: "u1"})

	assert.Equal(t, ThemeDark, s.Theme())
}

func TestToggleThemePersistsPerUser(t *testing.T) {
	ctx := context.Background()
	prefs := newMapPrefs()

	s := NewChatStore(prefs)
	s.SetCurrentUser(ctx, &models.User{ID: "u1"})
	assert.Equal(t, ThemeLight, s.ToggleTheme(ctx))
	assert.Equal(t, "light", prefs.values["theme:u1"])

	restarted := NewChatStore(prefs)
	restarted.SetCurrentUser(ctx, &models.User{ID: "u1"})
	assert.Equal(t, ThemeLight, restarted.Theme())

	assert.Equal(t, ThemeDark, restarted.ToggleTheme(ctx))
	assert.Equal(t, "dark", prefs.values["theme:u1"])
}

func TestToggleThemeSurvivesSaveFailure(t *testing.T) {
	prefs := newMapPrefs()
	prefs.saveErr = errors.New("redis down")

	s := NewChatStore(prefs)
	s.SetCurrentUser(context.Background(), &models.User{ID: "u1"})

	assert.Equal(t, ThemeLight, s.ToggleTheme(context.Background()))
	assert.Equal(t, ThemeLight, s.Theme())
}

func TestSubscriptionFieldsAreReplacedWholesale(t *testing.T) {
	s := NewChatStore(nil)

	s.SetMessages("c1", []*models.Message{{ID: "m1"}, {ID: "m2"}})
	s.SetMessages("c1", []*models.Message{{ID: "m3"}})
	require.Len(t, s.Messages("c1"), 1)
	assert.Equal(t, "m3", s.Messages("c1")[0].ID)

	s.SetOnlineUsers([]string{"u1", "u2"})
	s.SetOnlineUsers([]string{"u3"})
	assert.Equal(t, []string{"u3"}, s.OnlineUsers())
	assert.False(t, s.IsOnline("u1"))
}

func TestAddMessageAppends(t *testing.T) {
	s := NewChatStore(nil)
	s.SetMessages("c1", []*models.Message{{ID: "m1"}})
	s.AddMessage("c1", &models.Message{ID: "m2"})

	msgs := s.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestGettersReturnCopies(t *testing.T) {
	s := NewChatStore(nil)
	s.SetMessages("c1", []*models.Message{{ID: "m1", ReadBy: []string{"u1"}, Reactions: map[string][]string{}}})

	got := s.Messages("c1")
	got[0].ReadBy = append(got[0].ReadBy, "u2")
	got[0].Reactions["👍"] = []string{"u2"}

	again := s.Messages("c1")
	assert.Equal(t, []string{"u1"}, again[0].ReadBy)
	assert.Empty(t, again[0].Reactions)
}

func TestObserversSeeChanges(t *testing.T) {
	s := NewChatStore(nil)

	var got []Change
	unsubscribe := s.Subscribe(func(c Change) { got = append(got, c) })

	s.SetTyping("c1", []string{"bob"})
	s.SetActiveConversation("c1")
	s.SetActiveConversation("c1")
	unsubscribe()
	s.SetSidebarOpen(true)

	assert.Equal(t, []Change{
		{Field: FieldTyping, Key: "c1"},
		{Field: FieldActiveConversation},
	}, got)
	assert.True(t, s.SidebarOpen())
}

func TestResetKeepsTheme(t *testing.T) {
	ctx := context.Background()
	s := NewChatStore(newMapPrefs())
	s.SetCurrentUser(ctx, &models.User{ID: "u1"})
	s.ToggleTheme(ctx)
	s.SetConversations([]*models.Conversation{{ID: "c1"}})
	s.SetActiveConversation("c1")

	s.Reset()

	assert.Nil(t, s.CurrentUser())
	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.ActiveConversation())
	assert.Equal(t, ThemeLight, s.Theme())
}
