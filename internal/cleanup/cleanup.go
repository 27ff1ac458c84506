package cleanup

import (
	"errors"
	"fmt"
	"sync"
)

var defaultStack Stack

// Stack runs registered hooks in LIFO order. The zero value is ready to use.
type Stack struct {
	mu    sync.Mutex
	hooks []func() error
}

// Push adds a hook. Nil hooks are ignored.
func (s *Stack) Push(hook func() error) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Run executes and clears all hooks, joining any errors.
func (s *Stack) Run() error {
	s.mu.Lock()
	local := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	var errs []error
	for i := len(local) - 1; i >= 0; i-- {
		if err := local[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
}

// Register adds a hook to the process-wide stack.
func Register(hook func() error) { defaultStack.Push(hook) }

// RunAll drains the process-wide stack.
func RunAll() error { return defaultStack.Run() }
