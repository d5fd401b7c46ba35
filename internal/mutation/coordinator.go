// Package mutation applies create, update and delete operations optimistically
// to the resource cache. The visible lists change before the server answers;
// a failed call puts the cache back exactly as it was before the error is
// returned.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"pft/internal/apperr"
	"pft/internal/cache"
	"pft/internal/core"
	"pft/internal/events"
	"pft/internal/log"
	"pft/internal/metrics"
)

// Validator is implemented by inputs that can be checked locally.
type Validator interface {
	Validate() error
}

// Resource describes where one resource's records live in the cache.
type Resource[T any] struct {
	// Name labels logs, metrics and events, e.g. "budgets".
	Name string
	// Prefix covers every key the resource owns. Mutations never touch
	// keys outside it.
	Prefix cache.Key
	// ID extracts a record's id.
	ID func(T) core.ID
	// Accepts reports whether the list cached under key should show item.
	// Nil accepts every list.
	Accepts func(key cache.Key, item T) bool
	// Detail returns the key caching a single record, if the resource has
	// one.
	Detail func(id core.ID) (cache.Key, bool)
	// Append places new records at the end of lists instead of the front.
	Append bool
}

type Options struct {
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	Publisher events.Publisher
}

// Coordinator runs optimistic mutations for one resource. Mutations on the
// same resource are expected to be serialized by the caller.
type Coordinator[T any] struct {
	res     Resource[T]
	cache   *cache.Cache
	logger  *log.Logger
	metrics *metrics.Metrics
	events  events.Publisher
}

func New[T any](c *cache.Cache, res Resource[T], opts Options) *Coordinator[T] {
	pub := opts.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	return &Coordinator[T]{
		res:     res,
		cache:   c,
		logger:  log.OrNop(opts.Logger).WithComponent(log.ComponentMutation).With(log.FieldResource, res.Name),
		metrics: opts.Metrics,
		events:  pub,
	}
}

// Resource returns the coordinator's resource description.
func (m *Coordinator[T]) Resource() Resource[T] { return m.res }

// Create shows build(tempID) in every accepting list, calls the server and
// swaps the provisional record for the canonical one.
func (m *Coordinator[T]) Create(ctx context.Context, input Validator, build func(core.ID) T, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := validate(input, m.res.Name, log.OpCreate); err != nil {
		return zero, err
	}

	snap := m.prepare()
	tempID := core.NewTempID()
	provisional := build(tempID)
	cache.Update(m.cache, m.res.Prefix, func(key cache.Key, list []T) ([]T, bool) {
		if !m.accepts(key, provisional) {
			return list, false
		}
		return m.insert(list, provisional), true
	})

	created, err := call(ctx)
	if err != nil {
		m.rollback(ctx, snap, log.OpCreate, "", err, false)
		return zero, err
	}

	id := m.res.ID(created)
	m.replace(tempID, created)
	if key, ok := m.detailKey(id); ok {
		m.cache.Write(key, created)
	}
	m.settle(ctx, log.OpCreate, id, tempID)
	return created, nil
}

// Update applies patch to the record with id in every cached list, calls the
// server and stores the canonical result.
func (m *Coordinator[T]) Update(ctx context.Context, id core.ID, input Validator, patch func(T) T, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := validate(input, m.res.Name, log.OpUpdate); err != nil {
		return zero, err
	}

	snap := m.prepare()
	cache.Update(m.cache, m.res.Prefix, func(_ cache.Key, list []T) ([]T, bool) {
		return m.mapID(list, id, patch)
	})
	if key, ok := m.detailKey(id); ok {
		if cur, ok := cache.Get[T](m.cache, key); ok {
			m.cache.Write(key, patch(cur))
		}
	}

	updated, err := call(ctx)
	if err != nil {
		m.rollback(ctx, snap, log.OpUpdate, id, err, false)
		return zero, err
	}

	m.replace(id, updated)
	if key, ok := m.detailKey(id); ok {
		m.cache.Write(key, updated)
	}
	m.settle(ctx, log.OpUpdate, id, "")
	return updated, nil
}

// Delete hides the record with id from every cached list and calls the
// server. On failure the lists are restored and then invalidated so the
// server decides what remains.
func (m *Coordinator[T]) Delete(ctx context.Context, id core.ID, call func(context.Context) error) error {
	snap := m.prepare()
	cache.Update(m.cache, m.res.Prefix, func(_ cache.Key, list []T) ([]T, bool) {
		out := make([]T, 0, len(list))
		for _, item := range list {
			if m.res.ID(item) != id {
				out = append(out, item)
			}
		}
		return out, len(out) != len(list)
	})

	if err := call(ctx); err != nil {
		m.rollback(ctx, snap, log.OpDelete, id, err, true)
		return err
	}
	m.settle(ctx, log.OpDelete, id, "")
	return nil
}

// prepare stops in-flight reads that could overwrite the optimistic write and
// snapshots the resource.
func (m *Coordinator[T]) prepare() cache.Snapshot {
	m.cache.Cancel(m.res.Prefix)
	return m.cache.Snapshot(m.res.Prefix)
}

func (m *Coordinator[T]) rollback(ctx context.Context, snap cache.Snapshot, op string, id core.ID, err error, reconcile bool) {
	m.cache.Restore(snap)
	if reconcile {
		m.cache.Invalidate(m.res.Prefix)
	}
	m.metrics.Rollback(m.res.Name)
	m.metrics.Mutation(m.res.Name, op, false)
	m.logger.WarnContext(ctx, "Mutation rolled back",
		log.FieldOperation, op,
		log.FieldID, id.String(),
		log.FieldErrorKind, apperr.KindOf(err).String(),
		log.FieldError, err,
	)
	m.publish(ctx, events.NewMutationEvent(m.res.Name, op, id, err))
}

func (m *Coordinator[T]) settle(ctx context.Context, op string, id, tempID core.ID) {
	m.cache.Invalidate(m.res.Prefix)
	m.metrics.Mutation(m.res.Name, op, true)
	m.logger.InfoContext(ctx, "Mutation settled", log.FieldOperation, op, log.FieldID, id.String())
	ev := events.NewMutationEvent(m.res.Name, op, id, nil)
	ev.TempID = tempID
	m.publish(ctx, ev)
}

func (m *Coordinator[T]) publish(ctx context.Context, ev *events.MutationEvent) {
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.DebugContext(ctx, "Mutation event not published", log.FieldError, err)
	}
}

// replace swaps the record with id for canonical wherever it is listed.
func (m *Coordinator[T]) replace(id core.ID, canonical T) {
	cache.Update(m.cache, m.res.Prefix, func(_ cache.Key, list []T) ([]T, bool) {
		return m.mapID(list, id, func(T) T { return canonical })
	})
}

func (m *Coordinator[T]) mapID(list []T, id core.ID, fn func(T) T) ([]T, bool) {
	found := false
	out := make([]T, len(list))
	for i, item := range list {
		if m.res.ID(item) == id {
			item = fn(item)
			found = true
		}
		out[i] = item
	}
	if !found {
		return list, false
	}
	return out, true
}

func (m *Coordinator[T]) insert(list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	if m.res.Append {
		out = append(out, list...)
		return append(out, item)
	}
	out = append(out, item)
	return append(out, list...)
}

func (m *Coordinator[T]) accepts(key cache.Key, item T) bool {
	return m.res.Accepts == nil || m.res.Accepts(key, item)
}

func (m *Coordinator[T]) detailKey(id core.ID) (cache.Key, bool) {
	if m.res.Detail == nil || id.IsZero() {
		return cache.Key{}, false
	}
	return m.res.Detail(id)
}

func validate(input Validator, resource, op string) error {
	if input == nil {
		return nil
	}
	err := input.Validate()
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Validation(fmt.Sprintf("%s %s", op, resource), map[string]string{"input": err.Error()})
}
