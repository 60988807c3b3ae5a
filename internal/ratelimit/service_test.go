package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naazbooks/storefront/internal/audit"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingEmitter) Emit(e *audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) byKind(kind audit.Kind) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) Get(context.Context, string) (*models.RateLimitEntry, error) {
	return nil, f.err
}

func (f *failingStore) Delete(context.Context, string) error {
	return f.err
}

func (f *failingStore) DeleteStale(context.Context, time.Time, time.Duration) (int64, error) {
	return 0, f.err
}

func newTestService(t *testing.T) (*Service, *fakeClock, *recordingEmitter, *MemoryStore) {
	t.Helper()
	clock := newFakeClock()
	events := &recordingEmitter{}
	store := NewMemoryStore()
	svc := NewService(store, WithClock(clock.Now), WithEmitter(events))
	t.Cleanup(svc.Close)
	return svc, clock, events, store
}

func TestCheck_AliceScenario(t *testing.T) {
	svc, _, events, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Name: "login", Window: 60 * time.Second, MaxRequests: 3, BlockDuration: 300 * time.Second}

	for _, want := range []int{2, 1, 0} {
		res := svc.Check(ctx, cfg, "alice", ClientHint{})
		require.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
		assert.Zero(t, res.RetryAfter)
	}

	res := svc.Check(ctx, cfg, "alice", ClientHint{})
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 300*time.Second, res.RetryAfter)
	assert.Equal(t, 300, res.RetryAfterSeconds())

	violations := events.byKind(audit.KindRateLimitViolation)
	require.Len(t, violations, 1)
	v := violations[0].Violation
	assert.Equal(t, "user:alice", v.Key)
	assert.Equal(t, "login", v.Action)
	assert.Equal(t, 3, v.RequestCount)
	assert.Equal(t, int64(60000), v.WindowMs)
}

func TestCheck_MaxRequestsAllowedThenRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for _, limit := range []int{1, 2, 5, 10} {
		cfg := Config{Window: time.Minute, MaxRequests: limit}
		user := fmt.Sprintf("user-%d", limit)
		for i := 0; i < limit; i++ {
			assert.True(t, svc.Check(ctx, cfg, user, ClientHint{}).Allowed, "max=%d call=%d", limit, i+1)
		}
		res := svc.Check(ctx, cfg, user, ClientHint{})
		assert.False(t, res.Allowed, "max=%d", limit)
		assert.Greater(t, res.RetryAfter, time.Duration(0))
	}
}

func TestCheck_BlockedRequestsStayRejected(t *testing.T) {
	svc, clock, events, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 1, BlockDuration: 5 * time.Minute}

	require.True(t, svc.Check(ctx, cfg, "bob", ClientHint{}).Allowed)
	require.False(t, svc.Check(ctx, cfg, "bob", ClientHint{}).Allowed)

	// The window expires long before the block does
	clock.Advance(2 * time.Minute)
	res := svc.Check(ctx, cfg, "bob", ClientHint{})
	assert.False(t, res.Allowed)
	assert.Equal(t, 3*time.Minute, res.RetryAfter)

	// Only the tripping check emits a violation
	assert.Len(t, events.byKind(audit.KindRateLimitViolation), 1)
}

func TestCheck_FreshWindowAfterBlockElapses(t *testing.T) {
	svc, clock, _, store := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 2}

	svc.Check(ctx, cfg, "carol", ClientHint{})
	svc.Check(ctx, cfg, "carol", ClientHint{})
	blocked := svc.Check(ctx, cfg, "carol", ClientHint{})
	require.False(t, blocked.Allowed)
	assert.Equal(t, time.Minute, blocked.RetryAfter, "block defaults to the window")

	clock.Advance(time.Minute)
	res := svc.Check(ctx, cfg, "carol", ClientHint{})
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	entry, err := store.Get(ctx, "user:carol")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Count)
	assert.Nil(t, entry.BlockedUntil)
}

func TestCheck_WindowExpiryResetsCount(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 3}

	svc.Check(ctx, cfg, "dave", ClientHint{})
	svc.Check(ctx, cfg, "dave", ClientHint{})

	clock.Advance(time.Minute)
	res := svc.Check(ctx, cfg, "dave", ClientHint{})
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), res.ResetTime)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 1}

	assert.True(t, svc.Check(ctx, cfg, "erin", ClientHint{}).Allowed)
	assert.False(t, svc.Check(ctx, cfg, "erin", ClientHint{}).Allowed)
	assert.True(t, svc.Check(ctx, cfg, "", NetworkHint("203.0.113.9")).Allowed)
	assert.True(t, svc.Check(ctx, cfg, "frank", ClientHint{}).Allowed)
}

func TestCheck_FailsOpen(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}
	svc := NewService(store)
	cfg := Config{Window: time.Minute, MaxRequests: 1}

	for i := 0; i < 3; i++ {
		res := svc.Check(context.Background(), cfg, "gina", ClientHint{})
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Remaining)
	}
}

func TestCheck_InvalidConfigFailsOpen(t *testing.T) {
	svc, _, _, store := newTestService(t)

	res := svc.Check(context.Background(), Config{Window: 0, MaxRequests: 1}, "hank", ClientHint{})
	assert.True(t, res.Allowed)
	assert.Zero(t, store.Len())
}

func TestCheck_CustomKeyGenerator(t *testing.T) {
	svc, _, _, store := newTestService(t)
	cfg := Config{
		Window:       time.Minute,
		MaxRequests:  5,
		KeyGenerator: func(userID string, hint ClientHint) string { return "tenant:naaz" },
	}

	svc.Check(context.Background(), cfg, "ivy", ClientHint{})
	entry, err := store.Get(context.Background(), "tenant:naaz")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Count)
}

func TestCheck_ConcurrentCallsNeverOvercount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	cfg := Config{Window: time.Minute, MaxRequests: 50}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Check(context.Background(), cfg, "jack", ClientHint{}).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestReset_UnblocksImmediately(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 1, BlockDuration: time.Hour}

	svc.Check(ctx, cfg, "kate", ClientHint{})
	require.False(t, svc.Check(ctx, cfg, "kate", ClientHint{}).Allowed)

	require.NoError(t, svc.Reset(ctx, "kate", ClientHint{}, nil))

	res := svc.Check(ctx, cfg, "kate", ClientHint{})
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestReset_StoreError(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("read-only")}
	svc := NewService(store)

	err := svc.Reset(context.Background(), "", ClientHint{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anonymous")
}

func TestStatus_DoesNotMutate(t *testing.T) {
	svc, _, _, store := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 5}

	assert.Nil(t, svc.Status(ctx, cfg, "liam", ClientHint{}))
	assert.Zero(t, store.Len(), "status must not create entries")

	svc.Check(ctx, cfg, "liam", ClientHint{})
	svc.Check(ctx, cfg, "liam", ClientHint{})

	first := svc.Status(ctx, cfg, "liam", ClientHint{})
	require.NotNil(t, first)
	for i := 0; i < 10; i++ {
		again := svc.Status(ctx, cfg, "liam", ClientHint{})
		require.NotNil(t, again)
		assert.Equal(t, first.Remaining, again.Remaining)
	}
	assert.Equal(t, 3, first.Remaining)
	assert.True(t, first.Allowed)
}

func TestStatus_BlockedAndExpired(t *testing.T) {
	svc, clock, _, _ := newTestService(t)
	ctx := context.Background()
	cfg := Config{Window: time.Minute, MaxRequests: 1, BlockDuration: 2 * time.Minute}

	svc.Check(ctx, cfg, "mia", ClientHint{})
	svc.Check(ctx, cfg, "mia", ClientHint{})

	status := svc.Status(ctx, cfg, "mia", ClientHint{})
	require.NotNil(t, status)
	assert.False(t, status.Allowed)
	assert.Equal(t, 2*time.Minute, status.RetryAfter)

	clock.Advance(2 * time.Minute)
	assert.Nil(t, svc.Status(ctx, cfg, "mia", ClientHint{}), "elapsed block reads as no active window")

	svc.Check(ctx, cfg, "mia", ClientHint{})
	clock.Advance(time.Minute)
	assert.Nil(t, svc.Status(ctx, cfg, "mia", ClientHint{}), "expired window reads as no active window")
}

func TestRecord_HonorsSkipFlags(t *testing.T) {
	svc, _, events, _ := newTestService(t)
	ctx := context.Background()

	svc.Record(ctx, Config{Name: "search"}, true, "nora", ClientHint{})
	svc.Record(ctx, Config{Name: "search"}, false, "nora", ClientHint{})
	svc.Record(ctx, Config{Name: "search", SkipSuccessfulRequests: true}, true, "nora", ClientHint{})
	svc.Record(ctx, Config{Name: "search", SkipFailedRequests: true}, false, "nora", ClientHint{})

	logs := events.byKind(audit.KindRateLimitLog)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].RateLimitLog.Success)
	assert.False(t, logs[1].RateLimitLog.Success)
	assert.Equal(t, "user:nora", logs[0].RateLimitLog.Key)
	assert.Equal(t, "search", logs[0].RateLimitLog.Action)
}

func TestRecord_KeyGeneratorPanicIsSwallowed(t *testing.T) {
	svc, _, events, _ := newTestService(t)
	cfg := Config{Name: "contact", KeyGenerator: func(string, ClientHint) string { panic("boom") }}

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), cfg, true, "olga", ClientHint{})
	})
	assert.Empty(t, events.byKind(audit.KindRateLimitLog))
}

func TestSweep_RemovesStaleUnblockedEntries(t *testing.T) {
	svc, clock, _, store := newTestService(t)
	ctx := context.Background()
	short := Config{Window: time.Minute, MaxRequests: 10}
	blocking := Config{Window: time.Minute, MaxRequests: 1, BlockDuration: 3 * time.Hour}

	svc.Check(ctx, short, "old", ClientHint{})
	svc.Check(ctx, blocking, "blocked", ClientHint{})
	svc.Check(ctx, blocking, "blocked", ClientHint{})

	clock.Advance(90 * time.Minute)
	svc.Check(ctx, short, "fresh", ClientHint{})

	removed := svc.sweep()
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 2, store.Len())

	old, err := store.Get(ctx, "user:old")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestSweep_StoreErrorIsLogged(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("timeout")}
	svc := NewService(store)
	assert.Equal(t, int64(0), svc.sweep())
}

func TestStartClose(t *testing.T) {
	svc := NewService(NewMemoryStore(), WithSweepInterval(time.Millisecond))
	svc.Start()
	svc.Start()
	time.Sleep(5 * time.Millisecond)
	svc.Close()
	svc.Close()
}

func TestCheckHealth(t *testing.T) {
	svc := NewService(NewMemoryStore())
	c := svc.CheckHealth(context.Background())
	assert.Equal(t, "rate_limit_store", c.Name)
	assert.Equal(t, repository.HealthStatusHealthy, c.Status)

	broken := NewService(&failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")})
	c = broken.CheckHealth(context.Background())
	assert.Equal(t, repository.HealthStatusDegraded, c.Status)
	assert.Contains(t, c.Message, "uncounted")
}

func TestDefaultKey(t *testing.T) {
	assert.Equal(t, "user:alice", DefaultKey("alice", NetworkHint("10.0.0.1")))
	assert.Equal(t, "ip:10.0.0.1", DefaultKey("", NetworkHint("10.0.0.1")))
	assert.Equal(t, "anonymous", DefaultKey("", ClientHint{}))

	fp := FingerprintHint("Mozilla/5.0", "ur-PK")
	assert.Equal(t, "fp:"+fp.Value, DefaultKey("", fp))
	assert.Len(t, fp.Value, 32)
	assert.Equal(t, "login:user:alice", Namespaced("login", nil)("alice", ClientHint{}))
}

func TestHints(t *testing.T) {
	h := NetworkHint("::FFFF:0.0.0.1")
	assert.Equal(t, HintNetwork, h.Kind)
	assert.Equal(t, NetworkHint("::ffff:0:1").Value, h.Value)

	assert.True(t, NetworkHint("not-an-ip").IsZero())
	assert.True(t, NetworkHint("10.0.0.0/8").IsZero())

	fp := FingerprintHint("Mozilla/5.0", "1920x1080", "Asia/Karachi")
	assert.Equal(t, HintFingerprint, fp.Kind)
	assert.Len(t, fp.Value, 32)
	assert.Equal(t, fp, FingerprintHint("Mozilla/5.0", "1920x1080", "Asia/Karachi"))
	assert.True(t, FingerprintHint("", "").IsZero())

	assert.Equal(t, "network", HintNetwork.String())
	assert.Equal(t, "fingerprint", HintFingerprint.String())
	assert.Equal(t, "none", HintNone.String())
}
