package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlen/chat-backend/pkg/openrouter"
)

type stubLister struct {
	models []openrouter.Model
	err    error
	calls  int
}

func (s *stubLister) ListModels(ctx context.Context) ([]openrouter.Model, error) {
	s.calls++
	return s.models, s.err
}

func pricingFromJSON(t *testing.T, prompt, completion string) openrouter.Pricing {
	t.Helper()
	var p openrouter.Pricing
	raw := `{"prompt":` + prompt + `,"completion":` + completion + `}`
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestCache_FiltersToFreeModels(t *testing.T) {
	lister := &stubLister{models: []openrouter.Model{
		{ID: "free/string-zero", Name: "Free A", ContextLength: 4096, Pricing: pricingFromJSON(t, `"0"`, `0`)},
		{ID: "paid/prompt", Pricing: pricingFromJSON(t, `0.01`, `0`)},
		{ID: "free/number-zero", Pricing: pricingFromJSON(t, `0`, `"0"`)},
	}}
	cache := New(lister, time.Minute, zerolog.Nop())

	models, cached, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	require.Len(t, models, 2)
	assert.Equal(t, "free/string-zero", models[0].ID)
	assert.Equal(t, "free/number-zero", models[1].ID)
	assert.Equal(t, "Free A", models[0].Name)
	assert.Equal(t, 4096, models[0].ContextLength)
}

func TestCache_ServesCachedUntilExpiry(t *testing.T) {
	lister := &stubLister{models: []openrouter.Model{
		{ID: "free/one", Pricing: pricingFromJSON(t, `"0"`, `"0"`)},
	}}
	cache := New(lister, time.Minute, zerolog.Nop())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	cache.now = func() time.Time { return clock }

	_, cached, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, lister.calls)

	clock = base.Add(30 * time.Second)
	_, cached, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, lister.calls)

	clock = base.Add(2 * time.Minute)
	_, cached, err = cache.Models(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, lister.calls)
}

func TestCache_EmptySlotAlwaysRefreshes(t *testing.T) {
	// No free models cached means the next request asks upstream again.
	lister := &stubLister{models: []openrouter.Model{
		{ID: "paid/one", Pricing: pricingFromJSON(t, `0.01`, `0.01`)},
	}}
	cache := New(lister, time.Minute, zerolog.Nop())

	_, _, err := cache.Models(context.Background())
	require.NoError(t, err)
	_, cached, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, lister.calls)
}

func TestCache_UpstreamErrorPropagates(t *testing.T) {
	lister := &stubLister{err: errors.New("boom")}
	cache := New(lister, time.Minute, zerolog.Nop())

	_, _, err := cache.Models(context.Background())
	require.Error(t, err)
}

func TestCache_RefreshForcesReload(t *testing.T) {
	lister := &stubLister{models: []openrouter.Model{
		{ID: "free/one", Pricing: pricingFromJSON(t, `"0"`, `"0"`)},
	}}
	cache := New(lister, time.Hour, zerolog.Nop())

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 1, lister.calls)

	// The warm slot now answers without another upstream call.
	_, cached, err := cache.Models(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, lister.calls)
}
