package sessioncache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secvault/internal/events"
	"secvault/internal/providerid"
	"secvault/internal/sessionsettings"
	"secvault/internal/store"
	"secvault/internal/store/memstore"
)

type staticInstallationID string

func (s staticInstallationID) InstallationID(_ context.Context) (string, error) {
	return string(s), nil
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

// fakeScheduler records Create/Clear calls without actually firing
// timers, so tests control expiry deterministically via the fake
// clock instead of racing a real timer.
type fakeScheduler struct {
	armed    map[string]time.Duration
	handlers map[string]func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: map[string]time.Duration{}, handlers: map[string]func(){}}
}

func (s *fakeScheduler) Create(name string, delay time.Duration) { s.armed[name] = delay }
func (s *fakeScheduler) Clear(name string)                       { delete(s.armed, name) }
func (s *fakeScheduler) OnAlarm(name string, fn func())          { s.handlers[name] = fn }
func (s *fakeScheduler) fire(name string) {
	if fn, ok := s.handlers[name]; ok {
		fn()
	}
}

func newTestCache(t *testing.T) (*Cache, *memstore.Store, *fakeScheduler, *events.Bus) {
	t.Helper()

	durable := memstore.New()
	ephemeral := memstore.New()
	settingsStore := sessionsettings.NewStore(durable)
	scheduler := newFakeScheduler()
	bus := events.New()

	cache := New(ephemeral, settingsStore, scheduler, bus, staticInstallationID("install-a"))

	return cache, ephemeral, scheduler, bus
}

func TestHappyPathInitializeSetsTrustedAccessLevel(t *testing.T) {
	cache, ephemeral, _, _ := newTestCache(t)

	require.NoError(t, cache.Initialize(context.Background()))
	assert.Equal(t, store.AccessLevelTrustedOnly, ephemeral.AccessLevel())
}

func TestHappyPathCacheKeyThenGetCachedKeyRoundTrips(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-plaintext"))

	value, ok, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-plaintext", value)
}

func TestHappyPathGetCachedKeyMissingProvider(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))

	_, ok, err := cache.GetCachedKey(ctx, providerid.ID("never-cached"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHappyPathGetCachedKeyExpiredEntryIsEvicted(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	clock := &fakeClock{now: time.Now()}
	cache.WithClock(clock)
	ctx := context.Background()

	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-plaintext"))

	clock.now = clock.now.Add(time.Duration(sessionsettings.Default().SessionExpiryMinutes+1) * time.Minute)

	_, ok, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.False(t, ok)

	has, err := cache.HasUnlockedKeys(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHappyPathReadDoesNotExtendExpiry(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	clock := &fakeClock{now: time.Now()}
	cache.WithClock(clock)
	ctx := context.Background()

	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-plaintext"))

	_, _, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Duration(sessionsettings.Default().SessionExpiryMinutes+1) * time.Minute)

	_, ok, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHappyPathRemoveCachedKeyDeletesEntry(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-plaintext"))

	require.NoError(t, cache.RemoveCachedKey(ctx, providerid.ID("openai")))

	_, ok, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHappyPathClearAllWipesEveryEntry(t *testing.T) {
	cache, _, scheduler, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-1"))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("anthropic"), "sk-2"))

	require.NoError(t, cache.ClearAll(ctx))

	has, err := cache.HasUnlockedKeys(ctx)
	require.NoError(t, err)
	assert.False(t, has)
	assert.NotContains(t, scheduler.armed, "session-timeout")
}

func TestHappyPathUnlockedProvidersListsOnlyUnexpired(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-1"))

	providers, err := cache.UnlockedProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []providerid.ID{"openai"}, providers)
}

func TestHappyPathExtendSessionRefreshesExpiry(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	clock := &fakeClock{now: time.Now()}
	cache.WithClock(clock)
	ctx := context.Background()

	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-1"))

	clock.now = clock.now.Add(time.Duration(sessionsettings.Default().SessionExpiryMinutes-1) * time.Minute)

	extended, err := cache.ExtendSession(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.True(t, extended)

	clock.now = clock.now.Add(time.Duration(sessionsettings.Default().SessionExpiryMinutes-1) * time.Minute)

	_, ok, err := cache.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSadPathExtendSessionFalseWhenMissing(t *testing.T) {
	cache, _, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))

	extended, err := cache.ExtendSession(ctx, providerid.ID("never-cached"))
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestHappyPathCacheKeyPublishesSessionUnlockedEvent(t *testing.T) {
	cache, _, _, bus := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))

	var received []events.Event
	bus.Subscribe(func(ev events.Event) { received = append(received, ev) })

	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-1"))

	require.Len(t, received, 1)
	assert.Equal(t, events.SessionUnlocked, received[0].Kind)
	assert.Equal(t, "openai", received[0].Provider)
}

func TestHappyPathAlarmFiringClearsCacheAndPublishesLocked(t *testing.T) {
	cache, _, scheduler, bus := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Initialize(ctx))
	require.NoError(t, cache.CacheKey(ctx, providerid.ID("openai"), "sk-1"))

	var received []events.Event
	bus.Subscribe(func(ev events.Event) { received = append(received, ev) })

	scheduler.fire("session-timeout")

	has, err := cache.HasUnlockedKeys(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.Len(t, received, 1)
	assert.Equal(t, events.SessionLocked, received[0].Kind)
}

func TestHappyPathSessionKeySurvivesRestartWhenPersistenceEnabled(t *testing.T) {
	durable := memstore.New()
	ephemeral := memstore.New()
	settingsStore := sessionsettings.NewStore(durable)
	ctx := context.Background()
	require.NoError(t, settingsStore.Save(ctx, sessionsettings.Settings{PersistSession: true, SessionExpiryMinutes: 30, InactivityTimeoutMinutes: 15}))

	scheduler1 := newFakeScheduler()
	bus1 := events.New()
	cache1 := New(ephemeral, settingsStore, scheduler1, bus1, staticInstallationID("install-a"))
	require.NoError(t, cache1.Initialize(ctx))
	require.NoError(t, cache1.CacheKey(ctx, providerid.ID("openai"), "sk-persisted"))

	scheduler2 := newFakeScheduler()
	bus2 := events.New()
	cache2 := New(ephemeral, settingsStore, scheduler2, bus2, staticInstallationID("install-a"))
	require.NoError(t, cache2.Initialize(ctx))

	value, ok, err := cache2.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-persisted", value)
}

func TestHappyPathSessionKeyIsFreshEachRestartWhenPersistenceDisabled(t *testing.T) {
	durable := memstore.New()
	ephemeral := memstore.New()
	settingsStore := sessionsettings.NewStore(durable)
	ctx := context.Background()

	scheduler1 := newFakeScheduler()
	bus1 := events.New()
	cache1 := New(ephemeral, settingsStore, scheduler1, bus1, staticInstallationID("install-a"))
	require.NoError(t, cache1.Initialize(ctx))
	require.NoError(t, cache1.CacheKey(ctx, providerid.ID("openai"), "sk-ephemeral"))

	scheduler2 := newFakeScheduler()
	bus2 := events.New()
	cache2 := New(ephemeral, settingsStore, scheduler2, bus2, staticInstallationID("install-a"))
	require.NoError(t, cache2.Initialize(ctx))

	_, ok, err := cache2.GetCachedKey(ctx, providerid.ID("openai"))
	require.NoError(t, err)
	assert.False(t, ok)
}
