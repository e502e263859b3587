package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/aemforge/internal/retry"
)

// Stage turns a typed input into a prompt and parses the answer back into a
// typed output.
type Stage[In, Out any] interface {
	// Name identifies the stage in logs and errors.
	Name() string
	// Request renders the prompt for in.
	Request(in In) (*GenerateRequest, error)
	// Parse converts the generator's text into the stage output. Unparseable
	// text yields an *InvalidResponseError.
	Parse(text string) (Out, error)
}

// Invoke runs one stage: render the prompt, call gen under the backoff policy,
// parse the answer. Parse failures are not retried.
func Invoke[In, Out any](ctx context.Context, gen Generator, policy retry.Policy, stage Stage[In, Out], in In) (Out, error) {
	var zero Out

	req, err := stage.Request(in)
	if err != nil {
		return zero, fmt.Errorf("%s: building prompt: %w", stage.Name(), err)
	}

	start := time.Now()
	var text string
	err = policy.Do(ctx, stage.Name(), func(ctx context.Context) error {
		t, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		return zero, err
	}

	slog.Debug("Stage answered", "stage", stage.Name(), "chars", len(text), "duration", time.Since(start))

	out, err := stage.Parse(text)
	if err != nil {
		return zero, err
	}
	return out, nil
}
