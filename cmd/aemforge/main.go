package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess          = 0 // Component generated (and passed validation)
	ExitValidationFailed = 1 // Component generated but failed validation
	ExitError            = 2 // Configuration or runtime error
)

// ValidationFailedError indicates that generation or scoring succeeded but
// the component scored below the pass threshold.
type ValidationFailedError struct {
	Component string
	Score     int
}

func (e *ValidationFailedError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("validation failed with score %d", e.Score)
	}
	return fmt.Sprintf("component %s failed validation with score %d", e.Component, e.Score)
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var failed *ValidationFailedError
	if errors.As(err, &failed) {
		return ExitValidationFailed
	}
	return ExitError
}
