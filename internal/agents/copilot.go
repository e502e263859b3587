package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/spboyer/aemforge/internal/retry"
	"github.com/spboyer/aemforge/internal/utils"
)

// DefaultGenerateTimeout bounds a single generator call.
const DefaultGenerateTimeout = 3 * time.Minute

// CopilotGenerator answers prompts through GitHub Copilot sessions. Each
// prompt runs in a fresh session so stages never share conversation state.
type CopilotGenerator struct {
	model       string
	visionModel string
	timeout     time.Duration

	client copilotClient

	startOnce sync.Once
	startErr  error
}

// CopilotGeneratorOptions configure a CopilotGenerator.
type CopilotGeneratorOptions struct {
	// Model is used for text prompts. Blank lets the copilot CLI choose.
	Model string
	// VisionModel is used for prompts carrying an image; defaults to Model.
	VisionModel string
	// Timeout bounds each call; DefaultGenerateTimeout when zero.
	Timeout time.Duration

	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotGenerator creates a generator. The copilot client is started
// lazily on the first call.
func NewCopilotGenerator(options CopilotGeneratorOptions) *CopilotGenerator {
	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	newClient := options.NewCopilotClient
	if newClient == nil {
		newClient = newCopilotClient
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}

	visionModel := options.VisionModel
	if visionModel == "" {
		visionModel = options.Model
	}

	return &CopilotGenerator{
		model:       options.Model,
		visionModel: visionModel,
		timeout:     timeout,
		client:      newClient(copilotOptions),
	}
}

func (g *CopilotGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil request was passed to CopilotGenerator.Generate")
	}

	g.startOnce.Do(func() {
		// copilot's autostart runs into issues when started from separate goroutines
		g.startErr = g.client.Start(ctx)
	})
	if g.startErr != nil {
		// the start result is cached, so retrying cannot help
		return "", retry.Permanent(fmt.Errorf("%s: copilot failed to start: %w", req.Stage, g.startErr))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.model
	if req.ImageURL != "" {
		model = g.visionModel
	}

	session, err := g.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               model,
		OnPermissionRequest: denyAllTools,
	})
	if err != nil {
		return "", &TransientError{Op: req.Stage, Err: fmt.Errorf("failed to create session: %w", err)}
	}

	var (
		mu    sync.Mutex
		parts []string
	)
	unsubscribe := session.On(func(event copilot.SessionEvent) {
		if event.Type == copilot.AssistantMessage && event.Data.Content != nil {
			mu.Lock()
			parts = append(parts, *event.Data.Content)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	unsubscribe = session.On(utils.SessionToSlog)
	defer unsubscribe()

	final, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: copilotPrompt(req),
	})
	if err != nil {
		return "", &TransientError{Op: req.Stage, Err: err}
	}

	mu.Lock()
	answer := strings.Join(parts, "\n")
	mu.Unlock()

	if strings.TrimSpace(answer) == "" && final != nil && final.Data.Content != nil {
		answer = *final.Data.Content
	}

	slog.Debug("Copilot answered", "stage", req.Stage, "session", session.ID(), "model", model)
	return answer, nil
}

// Close stops the copilot client.
func (g *CopilotGenerator) Close() error {
	return g.client.Stop()
}

// copilotPrompt folds the system prompt and image reference into one message.
func copilotPrompt(req *GenerateRequest) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	b.WriteString(req.Prompt)
	if req.ImageURL != "" {
		b.WriteString("\n\nImage: ")
		b.WriteString(req.ImageURL)
	}
	return b.String()
}

// denyAllTools keeps generation sessions from running tools in the host.
func denyAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	return copilot.PermissionRequestResult{Kind: "denied-by-rules"}, nil
}
