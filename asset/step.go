package asset

// Stepper is a resumable multi-tick operation
// Each Step call performs one bounded unit of work and reports whether the sequence is exhausted
type Stepper interface {
	Step() (done bool, err error)
}

// StepFunc adapts a function to Stepper
type StepFunc func() (bool, error)

// Step implements Stepper
func (f StepFunc) Step() (bool, error) {
	return f()
}

// sequence runs one function per step
type sequence struct {
	steps []func() error
	next  int
}

// Steps builds a Stepper that runs each function as its own step, in order
// An empty sequence completes on its first step
func Steps(fns ...func() error) Stepper {
	return &sequence{steps: fns}
}

func (s *sequence) Step() (bool, error) {
	if s.next >= len(s.steps) {
		return true, nil
	}
	fn := s.steps[s.next]
	s.next++
	if err := fn(); err != nil {
		return true, err
	}
	return s.next >= len(s.steps), nil
}

// Once wraps a one-shot action as a single-step Stepper
func Once(action func() error) Stepper {
	return StepFunc(func() (bool, error) {
		return true, action()
	})
}
