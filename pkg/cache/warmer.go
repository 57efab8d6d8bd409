package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tiercache/tiercache/pkg/types"
)

// Warmer pre-populates a cache from a registry of loader functions. It is
// a one-shot populator: register loaders up front, run Warmup before
// steady-state traffic, and discard or reuse the warmer freely afterward.
type Warmer[K comparable, V any] struct {
	target types.Cache[K, V]
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	loaders map[K]types.Loader[V]
}

// NewWarmer creates a warmer that stores loaded values into target. A nil
// logger falls back to a no-op logger.
func NewWarmer[K comparable, V any](target types.Cache[K, V], logger *zap.SugaredLogger) *Warmer[K, V] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Warmer[K, V]{
		target:  target,
		logger:  logger,
		loaders: make(map[K]types.Loader[V]),
	}
}

// Register associates key with loader; the last registration for a key
// wins.
func (w *Warmer[K, V]) Register(key K, loader types.Loader[V]) {
	w.mu.Lock()
	w.loaders[key] = loader
	w.mu.Unlock()
}

// RegisterBatch registers every loader in batch with the same
// last-registration-wins semantics.
func (w *Warmer[K, V]) RegisterBatch(batch map[K]types.Loader[V]) {
	w.mu.Lock()
	for key, loader := range batch {
		w.loaders[key] = loader
	}
	w.mu.Unlock()
}

// Clear drops all registered loaders. Entries already warmed stay cached.
func (w *Warmer[K, V]) Clear() {
	w.mu.Lock()
	w.loaders = make(map[K]types.Loader[V])
	w.mu.Unlock()
}

// Len returns the number of registered loaders.
func (w *Warmer[K, V]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.loaders)
}

// Warmup loads the given keys (all registered keys when none are given)
// and stores the results in the target cache. Every loader runs in its own
// goroutine with no concurrency bound. A failing loader is warn-logged and
// skipped while the rest proceed; partial success is the contract, so the
// outcome is described by the returned counts rather than an error.
// Requested keys without a registered loader count as skipped.
func (w *Warmer[K, V]) Warmup(ctx context.Context, keys ...K) types.WarmupResult {
	return w.run(ctx, w.snapshot(keys), 0)
}

// WarmupConcurrent behaves like Warmup but processes keys in sequential
// batches of size concurrency, bounding peak in-flight loaders. A batch
// fully settles before the next one starts. Non-positive concurrency is
// treated as 1.
func (w *Warmer[K, V]) WarmupConcurrent(ctx context.Context, concurrency int, keys ...K) types.WarmupResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	return w.run(ctx, w.snapshot(keys), concurrency)
}

type warmTask[K comparable, V any] struct {
	key  K
	load types.Loader[V]
}

// snapshot resolves the requested keys against the registry. Unregistered
// keys come back with a nil loader so run can count them as skipped.
func (w *Warmer[K, V]) snapshot(keys []K) []warmTask[K, V] {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(keys) == 0 {
		tasks := make([]warmTask[K, V], 0, len(w.loaders))
		for key, load := range w.loaders {
			tasks = append(tasks, warmTask[K, V]{key: key, load: load})
		}
		return tasks
	}

	tasks := make([]warmTask[K, V], 0, len(keys))
	for _, key := range keys {
		tasks = append(tasks, warmTask[K, V]{key: key, load: w.loaders[key]})
	}
	return tasks
}

// run executes tasks in batches of size concurrency; zero means one
// unbounded batch. A cancelled context stops new batches from being
// issued; loaders already in flight receive the context and may abort
// themselves.
func (w *Warmer[K, V]) run(ctx context.Context, tasks []warmTask[K, V], concurrency int) types.WarmupResult {
	result := types.WarmupResult{Requested: len(tasks)}
	if len(tasks) == 0 {
		return result
	}

	batch := len(tasks)
	if concurrency > 0 {
		batch = concurrency
	}

	var loaded, failed, skipped atomic.Int64

	for start := 0; start < len(tasks); start += batch {
		if err := ctx.Err(); err != nil {
			skipped.Add(int64(len(tasks) - start))
			w.logger.Warnw("cache warmup cancelled", "remaining", len(tasks)-start, "error", err)
			break
		}

		end := min(start+batch, len(tasks))

		var wg sync.WaitGroup
		for _, task := range tasks[start:end] {
			if task.load == nil {
				skipped.Add(1)
				continue
			}

			wg.Add(1)
			go func(task warmTask[K, V]) {
				defer wg.Done()

				value, err := task.load(ctx)
				if err != nil {
					failed.Add(1)
					w.logger.Warnw("cache warmup loader failed", "key", task.key, "error", err)
					return
				}
				w.target.Set(task.key, value)
				loaded.Add(1)
			}(task)
		}
		wg.Wait()
	}

	result.Loaded = int(loaded.Load())
	result.Failed = int(failed.Load())
	result.Skipped = int(skipped.Load())
	return result
}

// WarmableCache bundles a cache with a Warmer so the pair satisfies
// types.Warmable.
type WarmableCache[K comparable, V any] struct {
	types.Cache[K, V]
	warmer *Warmer[K, V]
}

// NewWarmable wraps target with warm-up support.
func NewWarmable[K comparable, V any](target types.Cache[K, V], logger *zap.SugaredLogger) *WarmableCache[K, V] {
	return &WarmableCache[K, V]{
		Cache:  target,
		warmer: NewWarmer(target, logger),
	}
}

// RegisterWarmup associates a loader with key; the last registration wins.
func (c *WarmableCache[K, V]) RegisterWarmup(key K, loader types.Loader[V]) {
	c.warmer.Register(key, loader)
}

// Warmup loads the given keys into the cache. The returned error reflects
// only context cancellation; loader failures are logged and skipped.
func (c *WarmableCache[K, V]) Warmup(ctx context.Context, keys ...K) error {
	c.warmer.Warmup(ctx, keys...)
	return ctx.Err()
}

// Warmer exposes the underlying warmer for batch registration, bounded
// warm-up, and result inspection.
func (c *WarmableCache[K, V]) Warmer() *Warmer[K, V] {
	return c.warmer
}

var _ types.Warmable[string, int] = (*WarmableCache[string, int])(nil)
