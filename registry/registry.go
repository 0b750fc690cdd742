// Package registry is the hierarchical name registry: a path -> actor_id
// map, reverse lookup, subtree mounts, and a message-based path alongside
// the direct in-process path, both seeing the same map.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/foundation42/microkernel/message"
)

// MaxPathLen is the maximum length, in bytes, of a registered path.
const MaxPathLen = 128

// Errors named per the kernel's error taxonomy.
var (
	ErrInvalidArgument = errors.New("registry: invalid argument")
	ErrNotFound        = errors.New("registry: not found")
	ErrAlreadyExists   = errors.New("registry: already exists")
)

type mount struct {
	prefix string
	target message.ActorID
}

// Registry is the path/mount table. It is not safe to share across
// goroutines beyond the runtime's own single-threaded access plus whatever
// serialization the reactor/transport bridge already performs when handing
// NS_* request messages to it; a mutex is kept anyway since Lookup is also
// reachable directly (the "fast path") from code that is not itself inside
// the step loop, e.g. diagnostics.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]message.ActorID
	mounts  []mount
	reverse *lru.Cache[message.ActorID, []string]
}

// New returns an empty Registry. reverseCacheSize bounds the reverse-lookup
// cache (see ReverseLookup); 0 picks a small default.
func New(reverseCacheSize int) *Registry {
	if reverseCacheSize <= 0 {
		reverseCacheSize = 256
	}
	cache, _ := lru.New[message.ActorID, []string](reverseCacheSize)
	return &Registry{
		byPath:  make(map[string]message.ActorID),
		reverse: cache,
	}
}

func validatePath(path string) error {
	if path == "" || len(path) > MaxPathLen {
		return ErrInvalidArgument
	}
	return nil
}

// Register binds path to id. Re-registering the same path to the same id is
// idempotent; re-registering to a different id fails with ErrAlreadyExists.
func (r *Registry) Register(path string, id message.ActorID) error {
	if err := validatePath(path); err != nil {
		return err
	}
	if !id.IsValid() {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPath[path]; ok {
		if existing == id {
			return nil
		}
		return ErrAlreadyExists
	}
	r.byPath[path] = id
	r.reverse.Remove(id)
	return nil
}

// Lookup resolves path to an actor id, consulting local bindings first and
// then mounts: a binding directly under a mounted prefix still shadows the
// mount.
func (r *Registry) Lookup(path string) (message.ActorID, error) {
	if err := validatePath(path); err != nil {
		return message.Invalid, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byPath[path]; ok {
		return id, nil
	}
	if m, ok := r.findMount(path); ok {
		return m.target, nil
	}
	return message.Invalid, ErrNotFound
}

func (r *Registry) findMount(path string) (mount, bool) {
	var best mount
	found := false
	for _, m := range r.mounts {
		if strings.HasPrefix(path, m.prefix) {
			if !found || len(m.prefix) > len(best.prefix) {
				best = m
				found = true
			}
		}
	}
	return best, found
}

// DeregisterPaths removes every path bound to id. O(entries).
func (r *Registry) DeregisterPaths(id message.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path, bound := range r.byPath {
		if bound == id {
			delete(r.byPath, path)
		}
	}
	r.reverse.Remove(id)
}

// ReverseLookup returns the first path bound to id, or ErrNotFound.
func (r *Registry) ReverseLookup(id message.ActorID) (string, error) {
	all, err := r.ReverseLookupAll(id)
	if err != nil {
		return "", err
	}
	return all[0], nil
}

// ReverseLookupAll returns every path bound to id, cached behind an LRU since
// it is an O(entries) scan of the path table otherwise.
func (r *Registry) ReverseLookupAll(id message.ActorID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.reverse.Get(id); ok {
		if len(cached) == 0 {
			return nil, ErrNotFound
		}
		return cached, nil
	}

	var paths []string
	for path, bound := range r.byPath {
		if bound == id {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	r.reverse.Add(id, paths)
	if len(paths) == 0 {
		return nil, ErrNotFound
	}
	return paths, nil
}

// List returns every "path=id" pair whose path matches prefix, sorted by
// path. Paths resolved through a mount are attributed to the mount's target.
func (r *Registry) List(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for path, id := range r.byPath {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path+"="+id.String())
		}
	}
	for _, m := range r.mounts {
		if strings.HasPrefix(m.prefix, prefix) || strings.HasPrefix(prefix, m.prefix) {
			out = append(out, m.prefix+"*="+m.target.String())
		}
	}
	sort.Strings(out)
	return out
}

// Mount makes Lookup resolve any path beneath prefix to target (the longest
// matching mount prefix wins). The lookup is answered from this registry with
// target's id; it is not forwarded to target's node. A binding directly under
// prefix still shadows the mount (enforced by Lookup checking byPath first).
func (r *Registry) Mount(prefix string, target message.ActorID) error {
	if err := validatePath(prefix); err != nil {
		return err
	}
	if !target.IsValid() {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.mounts {
		if m.prefix == prefix {
			r.mounts[i].target = target
			return nil
		}
	}
	r.mounts = append(r.mounts, mount{prefix: prefix, target: target})
	return nil
}

// Unmount removes a mount previously installed with Mount.
func (r *Registry) Unmount(prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.mounts {
		if m.prefix == prefix {
			r.mounts = append(r.mounts[:i], r.mounts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Snapshot returns every direct path binding, for persistence or
// diagnostics. Mounts are not included.
func (r *Registry) Snapshot() map[string]message.ActorID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]message.ActorID, len(r.byPath))
	for k, v := range r.byPath {
		out[k] = v
	}
	return out
}

// Restore installs bindings loaded from a persisted snapshot without going
// through the Register idempotency/conflict checks (the store is assumed
// already consistent).
func (r *Registry) Restore(bindings map[string]message.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for path, id := range bindings {
		r.byPath[path] = id
	}
}
