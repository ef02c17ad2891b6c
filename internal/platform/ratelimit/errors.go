package ratelimit

import "fmt"

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("rate limit backend panicked: %v", e.value)
}
