// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package material

import "fmt"

// Op is a GPU-side operation on a material.
type Op uint8

// Operations carried by a Task.
const (
	OpAttach Op = iota
	OpDetach
)

func (op Op) String() string {
	switch op {
	case OpAttach:
		return "attach"
	case OpDetach:
		return "detach"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// Task applies one operation to one material. It implements frame.Task.
type Task struct {
	Op       Op
	Material Material
}

// Run implements frame.Task.
func (t Task) Run() error {
	switch t.Op {
	case OpAttach:
		return t.Material.Attach()
	case OpDetach:
		return t.Material.Detach()
	default:
		return fmt.Errorf("%w: %v", ErrUnknownOp, t.Op)
	}
}

func (t Task) String() string {
	if t.Material == nil {
		return fmt.Sprintf("%v <nil>", t.Op)
	}
	return fmt.Sprintf("%v %s", t.Op, t.Material.ID())
}
