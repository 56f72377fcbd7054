// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import "fmt"

// Task is a unit of work that must run on the thread owning the
// graphics context. A task is run exactly once.
type Task interface {
	Run() error
}

// Func adapts a plain function to a Task.
type Func func() error

// Run implements Task.
func (f Func) Run() error {
	return f()
}

// TaskError is reported to the ErrorHandler when a task fails.
type TaskError struct {
	Task Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("frame: task %s: %v", describe(e.Task), e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// describe names t for logs. A String method that panics falls back to the
// type name.
func describe(t Task) (name string) {
	name = fmt.Sprintf("%T", t)
	if s, ok := t.(fmt.Stringer); ok {
		defer func() {
			if recover() != nil {
				name = fmt.Sprintf("%T", t)
			}
		}()
		name = s.String()
	}
	return name
}
