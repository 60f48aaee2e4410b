// Package pool implements the fixed-size worker pool that grows one tree
// per worker. errgroup.Group surfaces a panic or error growing one tree to
// the driver on Wait without cancelling the others.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/classner/forpy-go/internal/desk"
)

// Task is a unit of work submitted to the pool; it receives the Desk that
// Run pairs with it (desks[i] for tasks[i]).
type Task func(d *desk.Desk) error

// Run submits one task per desk and blocks until all complete, returning
// the first error encountered (if any). Tasks run with bounded concurrency
// via errgroup.SetLimit; a panic inside a task is recovered and turned
// into an error, so one tree's failure fails the fit on Wait while the
// remaining trees still run to completion.
func Run(tasks []Task, desks []*desk.Desk, concurrency int) error {
	if len(tasks) != len(desks) {
		return fmt.Errorf("forpy: pool: %d tasks but %d desks", len(tasks), len(desks))
	}
	g, _ := errgroup.WithContext(context.Background())
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i := range tasks {
		task := tasks[i]
		d := desks[i]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("forpy: pool: worker panic: %v", r)
				}
			}()
			return task(d)
		})
	}

	return g.Wait()
}
