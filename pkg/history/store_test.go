package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	return NewStore(path, zerolog.Nop()), path
}

func TestStore_AppendAssignsIdentity(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	session, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "hi", Model: "m1"})
	require.NoError(t, err)

	require.Len(t, session.Messages, 1)
	msg := session.Messages[0]
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "m1", msg.Model)
	assert.True(t, session.UpdatedAt.Equal(msg.CreatedAt))
}

func TestStore_AppendPreservesCallOrder(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four"}
	for _, c := range contents {
		_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: c})
		require.NoError(t, err)
	}

	session, ok := store.Get(ctx, "s1")
	require.True(t, ok)
	require.Len(t, session.Messages, len(contents))
	for i, c := range contents {
		assert.Equal(t, c, session.Messages[i].Content)
	}
}

func TestStore_GetUnknownSession(t *testing.T) {
	store, _ := setupTestStore(t)

	session, ok := store.Get(context.Background(), "nope")
	assert.False(t, ok)
	assert.Nil(t, session)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "original", ImageURLs: []string{"a"}})
	require.NoError(t, err)

	first, ok := store.Get(ctx, "s1")
	require.True(t, ok)
	first.Messages[0].Content = "tampered"
	first.Messages[0].ImageURLs[0] = "tampered"

	second, ok := store.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "original", second.Messages[0].Content)
	assert.Equal(t, "a", second.Messages[0].ImageURLs[0])
}

func TestStore_DurableBeforeReturn(t *testing.T) {
	store, path := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "persist me"})
	require.NoError(t, err)

	// A fresh store reading the same file must see the message.
	reloaded := NewStore(path, zerolog.Nop())
	session, ok := reloaded.Get(ctx, "s1")
	require.True(t, ok)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "persist me", session.Messages[0].Content)
}

func TestStore_RoundTrip(t *testing.T) {
	store, path := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "hello", ImageURLs: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = store.Append(ctx, "s1", Draft{Role: RoleAssistant, Content: "world", Model: "m1"})
	require.NoError(t, err)
	_, err = store.Append(ctx, "s2", Draft{Role: RoleUser, Content: "other"})
	require.NoError(t, err)

	want := store.ListAll(ctx)

	reloaded := NewStore(path, zerolog.Nop())
	got := reloaded.ListAll(ctx)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].SessionID, got[i].SessionID)
		assert.True(t, want[i].UpdatedAt.Equal(got[i].UpdatedAt))
		require.Len(t, got[i].Messages, len(want[i].Messages))
		for j := range want[i].Messages {
			assert.Equal(t, want[i].Messages[j].ID, got[i].Messages[j].ID)
			assert.Equal(t, want[i].Messages[j].Content, got[i].Messages[j].Content)
			assert.Equal(t, want[i].Messages[j].ImageURLs, got[i].Messages[j].ImageURLs)
		}
	}
}

func TestStore_RepeatedReadsAreStable(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	first := store.ListAll(ctx)
	second := store.ListAll(ctx)
	assert.Equal(t, first, second)

	g1, _ := store.Get(ctx, "s1")
	g2, _ := store.Get(ctx, "s1")
	assert.Equal(t, g1, g2)
}

func TestStore_ListAllOrdering(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store.now = func() time.Time { return clock }

	_, err := store.Append(ctx, "oldest", Draft{Role: RoleUser, Content: "1"})
	require.NoError(t, err)

	clock = base.Add(time.Minute)
	_, err = store.Append(ctx, "newest", Draft{Role: RoleUser, Content: "2"})
	require.NoError(t, err)

	sessions := store.ListAll(ctx)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newest", sessions[0].SessionID)
	assert.Equal(t, "oldest", sessions[1].SessionID)

	// Appending to the oldest session moves it to the front.
	clock = base.Add(2 * time.Minute)
	_, err = store.Append(ctx, "oldest", Draft{Role: RoleUser, Content: "3"})
	require.NoError(t, err)

	sessions = store.ListAll(ctx)
	assert.Equal(t, "oldest", sessions[0].SessionID)
}

func TestStore_ListAllTieBreak(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := store.Append(ctx, id, Draft{Role: RoleUser, Content: "x"})
		require.NoError(t, err)
	}

	sessions := store.ListAll(ctx)
	require.Len(t, sessions, 3)
	assert.Equal(t, "alpha", sessions[0].SessionID)
	assert.Equal(t, "bravo", sessions[1].SessionID)
	assert.Equal(t, "charlie", sessions[2].SessionID)
}

func TestStore_MissingFileBootstrap(t *testing.T) {
	store, path := setupTestStore(t)

	_, ok := store.Get(context.Background(), "anything")
	assert.False(t, ok)

	// The first operation must leave a valid empty snapshot on disk.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var sessions []SessionHistory
	require.NoError(t, json.Unmarshal(data, &sessions))
	assert.Empty(t, sessions)
}

func TestStore_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewStore(path, zerolog.Nop())
	ctx := context.Background()

	sessions := store.ListAll(ctx)
	assert.Empty(t, sessions)

	// The store must still accept writes afterwards.
	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "recovered"})
	require.NoError(t, err)
}

func TestStore_PersistFailurePropagatesAndRollsBack(t *testing.T) {
	// The backing path is a directory, so the final rename must fail.
	dir := t.TempDir()
	store := NewStore(dir, zerolog.Nop())
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "doomed"})
	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)

	_, ok := store.Get(ctx, "s1")
	assert.False(t, ok, "failed append must not leave the message in memory")
}

func TestStore_Replace(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "before"})
	require.NoError(t, err)

	updated := SessionHistory{
		SessionID: "s1",
		Messages:  []Message{{ID: "fixed", Role: RoleUser, Content: "after", CreatedAt: time.Now().UTC()}},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Replace(ctx, updated))

	session, ok := store.Get(ctx, "s1")
	require.True(t, ok)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, "after", session.Messages[0].Content)
}

func TestStore_Delete(t *testing.T) {
	store, path := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", Draft{Role: RoleUser, Content: "bye"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, ok := store.Get(ctx, "s1")
	assert.False(t, ok)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, "s1"))

	reloaded := NewStore(path, zerolog.Nop())
	_, ok = reloaded.Get(ctx, "s1")
	assert.False(t, ok)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store, path := setupTestStore(t)
	ctx := context.Background()

	const perSession = 10
	var wg sync.WaitGroup
	for _, id := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				_, err := store.Append(ctx, sessionID, Draft{Role: RoleUser, Content: sessionID})
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"s1", "s2"} {
		session, ok := store.Get(ctx, id)
		require.True(t, ok)
		require.Len(t, session.Messages, perSession)
		for _, msg := range session.Messages {
			assert.Equal(t, id, msg.Content, "messages must not leak across sessions")
		}
	}

	// The persisted snapshot must be valid and contain both sessions.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var sessions []SessionHistory
	require.NoError(t, json.Unmarshal(data, &sessions))
	assert.Len(t, sessions, 2)
}

func TestStore_SingleFlightLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	seed := []SessionHistory{{
		SessionID: "seeded",
		Messages:  []Message{{ID: "m1", Role: RoleUser, Content: "hello", CreatedAt: time.Now().UTC()}},
		UpdatedAt: time.Now().UTC(),
	}}
	data, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store := NewStore(path, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, ok := store.Get(ctx, "seeded")
			assert.True(t, ok)
			if ok {
				assert.Len(t, session.Messages, 1)
			}
		}()
	}
	wg.Wait()
}
