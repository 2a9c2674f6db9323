package async

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Task is a named operation.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel starts all tasks at once and waits for them to finish.
// Every failure is returned, each prefixed with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "vm head", Func: deleteHead},
//	    {Name: "vm bastion", Func: deleteBastion},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))
	for _, task := range tasks {
		go func() {
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}
	return errs
}
