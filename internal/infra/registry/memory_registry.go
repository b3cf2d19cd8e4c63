package registry

import (
	"sync"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.JobRegistry = (*MemoryRegistry)(nil)

// MemoryRegistry implements repository.JobRegistry in process memory.
// WithTx stages changes on a copy and swaps it in on success, so readers
// see either the state before fn or the state after it, never in between.
type MemoryRegistry struct {
	mu       sync.RWMutex
	state    *jobSet
	version  uint64
	watchMu  sync.Mutex
	watchers []func([]model.Job)
	notified uint64
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{state: newJobSet()}
}

func (r *MemoryRegistry) Upsert(job model.Job) {
	_ = r.WithTx(func(tx repository.RegistryTx) error {
		tx.Upsert(job)
		return nil
	})
}

// Remove of an unknown key is a no-op.
func (r *MemoryRegistry) Remove(key string) {
	_ = r.WithTx(func(tx repository.RegistryTx) error {
		tx.Remove(key)
		return nil
	})
}

func (r *MemoryRegistry) Get(key string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.get(key)
}

func (r *MemoryRegistry) Snapshot() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.jobs()
}

func (r *MemoryRegistry) IsEmpty() bool { return r.Len() == 0 }

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.state.order)
}

// WithTx runs fn against a staged copy of the registry. If fn returns an error
// (or panics) the staged copy is dropped; otherwise it replaces the live state.
func (r *MemoryRegistry) WithTx(fn func(tx repository.RegistryTx) error) error {
	version, snap, err := r.commit(fn)
	if err != nil {
		return err
	}
	if snap != nil {
		r.notify(version, snap)
	}
	return nil
}

// commit stages and swaps under the write lock. snap is nil when nothing changed.
func (r *MemoryRegistry) commit(fn func(tx repository.RegistryTx) error) (uint64, []model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := r.state.clone()
	if err := fn(staged); err != nil {
		return 0, nil, err
	}
	changed := staged.dirty
	staged.dirty = false
	r.state = staged
	if !changed {
		return r.version, nil, nil
	}
	r.version++
	return r.version, staged.jobs(), nil
}

func (r *MemoryRegistry) Watch(fn func(snapshot []model.Job)) {
	if fn == nil {
		return
	}
	r.watchMu.Lock()
	r.watchers = append(r.watchers, fn)
	r.watchMu.Unlock()
}

// notify delivers snap unless a newer commit already reached the watchers.
// Watchers may read the registry but must not mutate it.
func (r *MemoryRegistry) notify(version uint64, snap []model.Job) {
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	if version <= r.notified {
		return
	}
	r.notified = version
	for _, w := range r.watchers {
		w(snap)
	}
}

// jobSet is an insertion-ordered map of jobs keyed by tracking key.
type jobSet struct {
	order []string
	byKey map[string]model.Job
	dirty bool
}

var _ repository.RegistryTx = (*jobSet)(nil)

func newJobSet() *jobSet {
	return &jobSet{byKey: make(map[string]model.Job)}
}

func (s *jobSet) clone() *jobSet {
	cp := &jobSet{
		order: make([]string, len(s.order)),
		byKey: make(map[string]model.Job, len(s.byKey)),
	}
	copy(cp.order, s.order)
	for k, v := range s.byKey {
		cp.byKey[k] = v.Clone()
	}
	return cp
}

func (s *jobSet) get(key string) (model.Job, bool) {
	j, ok := s.byKey[key]
	if !ok {
		return model.Job{}, false
	}
	return j.Clone(), true
}

func (s *jobSet) Get(key string) (model.Job, bool) { return s.get(key) }

// Upsert keeps an existing key in its slot and appends new keys.
func (s *jobSet) Upsert(job model.Job) {
	if _, ok := s.byKey[job.TrackingKey]; !ok {
		s.order = append(s.order, job.TrackingKey)
	}
	s.byKey[job.TrackingKey] = job.Clone()
	s.dirty = true
}

func (s *jobSet) Remove(key string) {
	if _, ok := s.byKey[key]; !ok {
		return
	}
	delete(s.byKey, key)
	if i := s.indexOf(key); i >= 0 {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
	s.dirty = true
}

func (s *jobSet) Replace(oldKey string, job model.Job) {
	if oldKey == job.TrackingKey {
		s.Upsert(job)
		return
	}
	i := s.indexOf(oldKey)
	if i < 0 {
		s.Upsert(job)
		return
	}
	// the new key may already exist elsewhere; keep exactly one slot for it
	s.Remove(job.TrackingKey)
	i = s.indexOf(oldKey)
	delete(s.byKey, oldKey)
	s.order[i] = job.TrackingKey
	s.byKey[job.TrackingKey] = job.Clone()
	s.dirty = true
}

func (s *jobSet) Jobs() []model.Job { return s.jobs() }

func (s *jobSet) jobs() []model.Job {
	out := make([]model.Job, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k].Clone())
	}
	return out
}

func (s *jobSet) indexOf(key string) int {
	for i, k := range s.order {
		if k == key {
			return i
		}
	}
	return -1
}
