// Package guard is the uniform boundary between fallible handlers and the
// host process: a unit of work that panics or errors is logged under its
// origin label and converted into a safe outcome instead of propagating.
package guard

import (
	"fmt"
	"log"
)

// Run executes fn and swallows any panic or returned error, logging it under
// name. It never panics itself and runs fn at most once. Side effects applied
// before the failure point are not rolled back.
func Run(logger *log.Logger, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logf(logger, name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		logf(logger, name, err)
	}
}

// RunValue executes fn and returns its value, or fallback if fn panics or
// errors.
func RunValue[T any](logger *log.Logger, name string, fallback T, fn func() (T, error)) (out T) {
	out = fallback
	defer func() {
		if r := recover(); r != nil {
			logf(logger, name, fmt.Errorf("panic: %v", r))
			out = fallback
		}
	}()
	v, err := fn()
	if err != nil {
		logf(logger, name, err)
		return fallback
	}
	return v
}

func logf(logger *log.Logger, name string, err error) {
	if logger == nil {
		return
	}
	logger.Printf("guard: %s: %v", name, err)
}
