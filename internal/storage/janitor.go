package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/naazbooks/storefront/internal/metrics"
)

const (
	clientPrefix = "client:"
	tabPrefix    = "tab:"

	janitorSweepTimeout = time.Minute
)

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// ListStore is a Store whose keys can be enumerated.
type ListStore interface {
	Store
	Lister
}

// Toucher records that a client and tab are in use. ClientScope calls it
// on every request when the base store implements it.
type Toucher interface {
	Touch(clientID, tabID string)
}

// JanitorConfig holds the idle limits of client scopes.
type JanitorConfig struct {
	TabIdle       time.Duration // Tab scopes untouched this long are removed
	ClientIdle    time.Duration // Client scopes untouched this long are removed
	SweepInterval time.Duration
	// Disposable names local keys that do not keep an idle client alive on
	// their own. A client idle for TabIdle holding only these is removed.
	Disposable []string
}

// DefaultJanitorConfig drops tabs after a day and clients after 30 days.
// A client that only ever fetched a CSRF token goes with its tab.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		TabIdle:       24 * time.Hour,
		ClientIdle:    30 * 24 * time.Hour,
		SweepInterval: 30 * time.Minute,
		Disposable:    []string{KeyCSRFToken},
	}
}

// Janitor wraps a ListStore, remembers when each client and tab scope was
// last used and removes the keys of idle scopes. It is itself a Store, so
// it can be handed to ClientScope in place of the base store.
type Janitor struct {
	ListStore

	cfg        JanitorConfig
	disposable map[string]bool
	now        func() time.Time

	mu      sync.Mutex
	touched map[string]time.Time // Scope prefix without trailing colon

	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithJanitorClock replaces time.Now.
func WithJanitorClock(now func() time.Time) JanitorOption {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

// NewJanitor returns a Janitor over base. Zero fields of cfg take the
// defaults.
func NewJanitor(base ListStore, cfg JanitorConfig, opts ...JanitorOption) *Janitor {
	def := DefaultJanitorConfig()
	if cfg.TabIdle <= 0 {
		cfg.TabIdle = def.TabIdle
	}
	if cfg.ClientIdle <= 0 {
		cfg.ClientIdle = def.ClientIdle
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.Disposable == nil {
		cfg.Disposable = def.Disposable
	}

	j := &Janitor{
		ListStore:  base,
		cfg:        cfg,
		disposable: make(map[string]bool, len(cfg.Disposable)),
		now:        time.Now,
		touched:    make(map[string]time.Time),
		stop:       make(chan struct{}),
	}
	for _, key := range cfg.Disposable {
		j.disposable[key] = true
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Touch marks the client and tab as used now.
func (j *Janitor) Touch(clientID, tabID string) {
	now := j.now()
	client := clientPrefix + clientID

	j.mu.Lock()
	defer j.mu.Unlock()
	j.touched[client] = now
	if tabID != "" {
		j.touched[client+scopeSeparator+tabPrefix+tabID] = now
	}
}

// Tracked returns how many scopes currently have a last-used time.
func (j *Janitor) Tracked() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.touched)
}

type clientKeys struct {
	local []string            // Full keys outside any tab
	tabs  map[string][]string // Tab prefix -> full keys
}

// groupKeys splits client storage keys by client and tab prefix.
func groupKeys(keys []string) map[string]*clientKeys {
	clients := make(map[string]*clientKeys)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, clientPrefix)
		clientID, name, ok := strings.Cut(rest, scopeSeparator)
		if !ok || clientID == "" {
			continue
		}
		client := clientPrefix + clientID
		ck := clients[client]
		if ck == nil {
			ck = &clientKeys{tabs: make(map[string][]string)}
			clients[client] = ck
		}

		if tabRest, isTab := strings.CutPrefix(name, tabPrefix); isTab {
			if tabID, _, ok := strings.Cut(tabRest, scopeSeparator); ok && tabID != "" {
				tab := client + scopeSeparator + tabPrefix + tabID
				ck.tabs[tab] = append(ck.tabs[tab], key)
				continue
			}
		}
		ck.local = append(ck.local, key)
	}
	return clients
}

// Sweep removes the keys of idle scopes and returns how many keys it
// deleted. Scopes found in the store but never touched since start are
// treated as used now, so files kept across a restart get a full idle
// period.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	keys, err := j.List(ctx, clientPrefix)
	if err != nil {
		return 0, err
	}
	clients := groupKeys(keys)
	now := j.now()

	j.mu.Lock()
	lastUsed := func(prefix string) time.Time {
		t, ok := j.touched[prefix]
		if !ok {
			j.touched[prefix] = now
			return now
		}
		return t
	}

	var doomed []string
	live := make(map[string]bool)
	for client, ck := range clients {
		clientIdle := now.Sub(lastUsed(client))

		tabsLeft := 0
		for tab, tabKeys := range ck.tabs {
			if clientIdle >= j.cfg.ClientIdle || now.Sub(lastUsed(tab)) >= j.cfg.TabIdle {
				doomed = append(doomed, tabKeys...)
				delete(j.touched, tab)
				continue
			}
			live[tab] = true
			tabsLeft++
		}

		dropClient := clientIdle >= j.cfg.ClientIdle ||
			(clientIdle >= j.cfg.TabIdle && tabsLeft == 0 && j.onlyDisposable(client, ck.local))
		if dropClient {
			doomed = append(doomed, ck.local...)
			delete(j.touched, client)
			continue
		}
		live[client] = true
	}

	// Scopes that never stored anything only need remembering for a while.
	for prefix, t := range j.touched {
		if !live[prefix] && now.Sub(t) >= j.cfg.TabIdle {
			delete(j.touched, prefix)
		}
	}
	j.mu.Unlock()

	removed := 0
	for _, key := range doomed {
		if err := j.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (j *Janitor) onlyDisposable(client string, local []string) bool {
	for _, key := range local {
		name := strings.TrimPrefix(key, client+scopeSeparator)
		if !j.disposable[name] {
			return false
		}
	}
	return true
}

// Start launches the background sweep. It is safe to call more than once.
func (j *Janitor) Start() {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go j.sweepLoop()
		slog.Info("client storage janitor started",
			"interval", j.cfg.SweepInterval,
			"tab_idle", j.cfg.TabIdle,
			"client_idle", j.cfg.ClientIdle)
	})
}

// Close stops the background sweep and waits for it to exit.
func (j *Janitor) Close() {
	j.closeOnce.Do(func() {
		close(j.stop)
		j.wg.Wait()
	})
}

func (j *Janitor) sweepLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), janitorSweepTimeout)
	defer cancel()

	removed, err := j.Sweep(ctx)
	if removed > 0 {
		metrics.ClientStorageKeysSweptTotal.Add(float64(removed))
		slog.Debug("swept idle client storage", "count", removed)
	}
	if err != nil {
		slog.Error("failed to sweep client storage", "error", err, "removed", removed)
	}
}
