// Package registry keeps the process-local view of payment intents, indexed
// by intent id and by client secret.
package registry

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Record is the locally cached view of a remote payment intent.
type Record struct {
	ID           string
	Status       string
	ClientSecret string
}

// Options bound the registry. Zero values mean unbounded and no expiry.
type Options struct {
	Capacity int
	TTL      time.Duration
}

// Registry maps intent id to Record and resolves client secrets back to ids.
// It is safe for concurrent use; concurrent Puts on the same id are
// last-writer-wins.
type Registry struct {
	mu       sync.Mutex // serializes writers so the secret index stays consistent
	records  *expirable.LRU[string, Record]
	bySecret sync.Map // client secret -> intent id
	byID     sync.Map // intent id -> client secret, survives until the entry is reaped
}

// New returns an empty registry.
func New(opts Options) *Registry {
	r := &Registry{}
	capacity := opts.Capacity
	if capacity < 0 {
		capacity = 0
	}
	r.records = expirable.NewLRU[string, Record](capacity, r.onEvict, opts.TTL)
	return r
}

// onEvict runs under the LRU's own lock, so it only touches the sync.Map.
func (r *Registry) onEvict(id string, rec Record) {
	r.bySecret.CompareAndDelete(rec.ClientSecret, id)
	r.byID.CompareAndDelete(id, rec.ClientSecret)
}

// Put inserts or wholesale replaces the record for id.
func (r *Registry) Put(id, status, clientSecret string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Peek hides expired entries that are not reaped yet, so the previous
	// secret comes from byID instead.
	if prev, ok := r.byID.Load(id); ok && prev.(string) != clientSecret {
		r.bySecret.CompareAndDelete(prev, id)
	}
	r.records.Add(id, Record{ID: id, Status: status, ClientSecret: clientSecret})
	r.bySecret.Store(clientSecret, id)
	r.byID.Store(id, clientSecret)
}

// FindBySecret returns the record whose client secret equals secret.
// A miss is reported with ok=false.
func (r *Registry) FindBySecret(secret string) (Record, bool) {
	if secret == "" {
		return Record{}, false
	}
	v, ok := r.bySecret.Load(secret)
	if !ok {
		return Record{}, false
	}
	rec, ok := r.records.Get(v.(string))
	if !ok || rec.ClientSecret != secret {
		return Record{}, false
	}
	return rec, true
}

// Get returns the record stored under id.
func (r *Registry) Get(id string) (Record, bool) {
	return r.records.Peek(id)
}

// Len reports the number of live records.
func (r *Registry) Len() int {
	return r.records.Len()
}
