package cache

import (
	"fmt"
	"sync/atomic"
)

// SessionKind distinguishes record tokens from playback tokens.
type SessionKind uint8

const (
	SessionRecord SessionKind = iota + 1
	SessionPlayback
)

func (k SessionKind) String() string {
	switch k {
	case SessionRecord:
		return "record"
	case SessionPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// UserToken proves its holder opened a session on a cache. A token returned
// by a failed Begin call is never open. Open tokens must be handed back to
// the matching End call exactly once.
type UserToken struct {
	owner *Cache
	kind  SessionKind
	open  atomic.Bool
}

func newToken(owner *Cache, kind SessionKind, open bool) *UserToken {
	t := &UserToken{owner: owner, kind: kind}
	t.open.Store(open)
	return t
}

// IsOpen reports whether the token still holds a session. A nil token is
// closed.
func (t *UserToken) IsOpen() bool {
	return t != nil && t.open.Load()
}

// Owner returns the cache the token was issued by.
func (t *UserToken) Owner() *Cache {
	if t == nil {
		return nil
	}
	return t.owner
}

func (t *UserToken) Kind() SessionKind {
	if t == nil {
		return 0
	}
	return t.kind
}

// close consumes the token. Closing a nil, foreign, mismatched or already
// closed token is a programming error.
func (t *UserToken) close(owner *Cache, kind SessionKind) {
	if t == nil {
		panic("cache: nil session token")
	}
	if t.owner != owner {
		panic(fmt.Sprintf("cache: %s token for %q closed on %q", t.kind, t.owner.Name(), owner.Name()))
	}
	if t.kind != kind {
		panic(fmt.Sprintf("cache: %s token passed to End%s", t.kind, kindVerb(kind)))
	}
	if !t.open.CompareAndSwap(true, false) {
		panic(fmt.Sprintf("cache: %s token for %q already closed", t.kind, owner.Name()))
	}
}

func kindVerb(k SessionKind) string {
	if k == SessionRecord {
		return "Record"
	}
	return "Playback"
}
