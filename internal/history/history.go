package history

import "errors"

// ErrEmpty is returned when there is nothing to undo or redo.
var ErrEmpty = errors.New("history is empty")

// Applier executes and reverts commands of type C.
//
// Apply returns the command as it should be recorded: implementations fill in
// any state captured at execution time (displaced entries, split offsets) so
// that Revert can restore it exactly without recomputing anything.
type Applier[C any] interface {
	Apply(cmd C) (C, error)
	Revert(cmd C) error
}

// Stack is a two-stack undo/redo history of command values.
// It is not safe for concurrent use; callers serialize access.
type Stack[C any] struct {
	applier Applier[C]
	done    []C
	undone  []C
	limit   int
}

// New creates a history bound to an applier. A limit of 0 keeps every
// command; otherwise the oldest entries are dropped once it is exceeded.
func New[C any](applier Applier[C], limit int) *Stack[C] {
	return &Stack[C]{applier: applier, limit: limit}
}

// Do applies cmd and records it. A failed command leaves both stacks
// untouched. A successful one clears the redo stack.
func (s *Stack[C]) Do(cmd C) (C, error) {
	applied, err := s.applier.Apply(cmd)
	if err != nil {
		return cmd, err
	}
	s.push(applied)
	s.undone = s.undone[:0]
	return applied, nil
}

// Undo reverts the most recent command.
func (s *Stack[C]) Undo() (C, error) {
	var zero C
	if len(s.done) == 0 {
		return zero, ErrEmpty
	}
	cmd := s.done[len(s.done)-1]
	if err := s.applier.Revert(cmd); err != nil {
		return zero, err
	}
	s.done = s.done[:len(s.done)-1]
	s.undone = append(s.undone, cmd)
	return cmd, nil
}

// Redo re-applies the most recently undone command.
func (s *Stack[C]) Redo() (C, error) {
	var zero C
	if len(s.undone) == 0 {
		return zero, ErrEmpty
	}
	cmd := s.undone[len(s.undone)-1]
	applied, err := s.applier.Apply(cmd)
	if err != nil {
		return zero, err
	}
	s.undone = s.undone[:len(s.undone)-1]
	s.push(applied)
	return applied, nil
}

func (s *Stack[C]) push(cmd C) {
	s.done = append(s.done, cmd)
	if s.limit > 0 && len(s.done) > s.limit {
		s.done = append(s.done[:0], s.done[len(s.done)-s.limit:]...)
	}
}

func (s *Stack[C]) CanUndo() bool { return len(s.done) > 0 }
func (s *Stack[C]) CanRedo() bool { return len(s.undone) > 0 }

// Clear drops both stacks.
func (s *Stack[C]) Clear() {
	s.done = nil
	s.undone = nil
}

// Entries returns copies of the done and undone stacks, oldest first.
func (s *Stack[C]) Entries() (done, undone []C) {
	done = append([]C(nil), s.done...)
	undone = append([]C(nil), s.undone...)
	return done, undone
}

// Restore replaces both stacks without applying anything. It is used when
// the state the commands refer to is restored by other means (project files).
func (s *Stack[C]) Restore(done, undone []C) {
	s.done = append([]C(nil), done...)
	s.undone = append([]C(nil), undone...)
}
