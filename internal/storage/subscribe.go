package storage

import (
	"context"
	"sync"

	"github.com/google/go-cmp/cmp"

	"localhaven-cms/internal/event"
)

// Subscribe runs query now and again after every commit to s, passing each
// new result to onData. A rerun whose result equals the previous delivery is
// not delivered. Query failures after the first run go to onError when set.
//
// One goroutine at a time reads and delivers. A commit that lands while a
// rerun is in flight is folded into one more rerun by that goroutine, so
// deliveries never go backwards and the last one reflects the latest commit.
// onData may itself commit to s.
//
// T is compared with cmp.Equal, so it must not contain unexported fields.
func Subscribe[T any](
	ctx context.Context,
	s Store,
	query func(ctx context.Context, tx ReadTx) (T, error),
	onData func(T),
	onError func(error),
) (func(), error) {
	var (
		mu      sync.Mutex
		running = true // the first run holds the runner slot
		dirty   bool

		// Owned by whoever holds the runner slot.
		last      T
		delivered bool
	)

	run := func(ctx context.Context) error {
		var result T
		err := s.Read(ctx, func(ctx context.Context, tx ReadTx) error {
			r, err := query(ctx, tx)
			result = r
			return err
		})
		if err != nil {
			return err
		}

		if delivered && cmp.Equal(last, result) {
			return nil
		}
		last, delivered = result, true
		onData(result)
		return nil
	}

	rerunCtx := context.WithoutCancel(ctx)
	rerun := func() {
		if err := run(rerunCtx); err != nil && onError != nil {
			onError(err)
		}
	}

	// settle reruns until no commit arrived during the previous run, then
	// gives up the runner slot.
	settle := func() {
		for {
			mu.Lock()
			if !dirty {
				running = false
				mu.Unlock()
				return
			}
			dirty = false
			mu.Unlock()
			rerun()
		}
	}

	// Watch before the first run so no commit falls between the two.
	unsubscribe := s.Watch(func(event.Event) {
		mu.Lock()
		if running {
			dirty = true
			mu.Unlock()
			return
		}
		running = true
		mu.Unlock()

		rerun()
		settle()
	})

	if err := run(ctx); err != nil {
		unsubscribe()
		return nil, err
	}
	settle()

	return unsubscribe, nil
}
