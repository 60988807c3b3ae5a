package storage

import "context"

// scopeSeparator joins a scope prefix and a key.
const scopeSeparator = ":"

type scopedStore struct {
	base   Store
	prefix string
}

// Scoped returns a view of base in which every key is prefixed with
// prefix and a colon. Scopes nest: Scoped(Scoped(s, "a"), "b") writes
// "a:b:<key>" into s.
func Scoped(base Store, prefix string) Store {
	return &scopedStore{base: base, prefix: prefix + scopeSeparator}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.base.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.base.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.base.Delete(ctx, s.prefix+key)
}

type unavailableStore struct{}

// Unavailable returns a Store whose every operation fails with
// ErrUnavailable. It stands in for disabled client storage.
func Unavailable() Store {
	return unavailableStore{}
}

func (unavailableStore) Get(_ context.Context, key string) (string, bool, error) {
	return "", false, NewStorageError("Get", key, ErrUnavailable)
}

func (unavailableStore) Set(_ context.Context, key, _ string) error {
	return NewStorageError("Set", key, ErrUnavailable)
}

func (unavailableStore) Delete(_ context.Context, key string) error {
	return NewStorageError("Delete", key, ErrUnavailable)
}

// Scope groups the two stores of one client: Local outlives a browser
// session, Session is cleared when the tab session ends.
type Scope struct {
	ClientID string
	Local    Store
	Session  Store
}

// NewScope returns the scope of clientID and tabID inside base.
func NewScope(base Store, clientID, tabID string) Scope {
	local := Scoped(base, "client:"+clientID)
	return Scope{
		ClientID: clientID,
		Local:    local,
		Session:  Scoped(local, "tab:"+tabID),
	}
}
