package repository

import "vidnag-tracker/internal/domain/model"

// RegistryTx is the mutation surface handed to JobRegistry.WithTx.
// Everything done through it becomes visible at once when fn returns nil,
// and is discarded when fn returns an error.
type RegistryTx interface {
	Get(key string) (model.Job, bool)
	Upsert(job model.Job)
	Remove(key string)
	// Replace removes oldKey and puts job in the slot oldKey occupied.
	// When oldKey is absent job is appended.
	Replace(oldKey string, job model.Job)
	Jobs() []model.Job
}

// JobRegistry is the single source of truth for what the client shows as active.
// Snapshots keep insertion order and are deep copies.
//
// USAGE
// reg.WithTx(func(tx repository.RegistryTx) error {
// tx.Replace(provisionalKey, tracked)
// return nil
// })
type JobRegistry interface {
	Upsert(job model.Job)
	Remove(key string)
	Get(key string) (model.Job, bool)
	Snapshot() []model.Job
	IsEmpty() bool
	Len() int

	WithTx(fn func(tx RegistryTx) error) error

	// Watch registers fn to run after every committed change, outside the lock.
	Watch(fn func(snapshot []model.Job))
}
