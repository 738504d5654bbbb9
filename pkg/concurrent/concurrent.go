package concurrent

import (
	"github.com/zeusync/chaoscache/pkg/sequence"
	"golang.org/x/sync/errgroup"
)

// Concurrent runs action for each element of the iterator in its own
// goroutine, at most limit at a time (limit <= 0 means unbounded). It waits
// for all goroutines and returns the first error encountered.
func Concurrent[T any](i *sequence.Iterator[T], limit int, action func(T) error) error {
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}

	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		group.Go(func() error {
			return action(value)
		})
	}

	return group.Wait()
}

// Sequential runs action for each element in order, stopping at the first error.
func Sequential[T any](i *sequence.Iterator[T], action func(T) error) error {
	var err error
	i.Seq()(func(v T) bool {
		err = action(v)
		return err == nil
	})
	return err
}
