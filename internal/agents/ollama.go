package agents

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
	"github.com/spboyer/aemforge/internal/retry"
)

// maxImageBytes caps downloaded images sent to vision models.
const maxImageBytes = 20 << 20

// ollamaChatter is the part of [*ollama.Client] the generator uses.
type ollamaChatter interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
}

// OllamaGenerator answers prompts with a local or remote Ollama server.
// Vision prompts send the image bytes with the message.
type OllamaGenerator struct {
	client      ollamaChatter
	httpClient  *http.Client
	model       string
	visionModel string
	timeout     time.Duration
	temperature float64
}

// OllamaOptions configure an OllamaGenerator.
type OllamaOptions struct {
	// Host is the server URL; OLLAMA_HOST (or the default local server)
	// is used when blank.
	Host        string
	Model       string
	VisionModel string
	Timeout     time.Duration
	Temperature float64
}

// NewOllamaGenerator creates a generator for the configured server.
func NewOllamaGenerator(opts OllamaOptions) (*OllamaGenerator, error) {
	if opts.Model == "" {
		return nil, errors.New("an ollama model is required")
	}

	var client *ollama.Client
	if opts.Host != "" {
		u, err := url.Parse(opts.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", opts.Host, err)
		}
		client = ollama.NewClient(u, http.DefaultClient)
	} else {
		var err error
		client, err = ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
	}

	return newOllamaGenerator(client, opts), nil
}

func newOllamaGenerator(client ollamaChatter, opts OllamaOptions) *OllamaGenerator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	visionModel := opts.VisionModel
	if visionModel == "" {
		visionModel = opts.Model
	}
	return &OllamaGenerator{
		client:      client,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		model:       strings.TrimPrefix(opts.Model, "ollama:"),
		visionModel: strings.TrimPrefix(visionModel, "ollama:"),
		timeout:     timeout,
		temperature: opts.Temperature,
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	if req == nil {
		return "", errors.New("nil request was passed to OllamaGenerator.Generate")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user := ollama.Message{Role: "user", Content: req.Prompt}
	model := g.model
	if req.ImageURL != "" {
		image, err := g.loadImage(ctx, req.ImageURL)
		if err != nil {
			return "", err
		}
		user.Images = []ollama.ImageData{image}
		model = g.visionModel
	}

	var messages []ollama.Message
	if req.System != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, user)

	stream := false
	chat := &ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Format:   json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": g.temperature,
		},
	}

	var answer strings.Builder
	err := g.client.Chat(ctx, chat, func(res ollama.ChatResponse) error {
		answer.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return "", classifyOllamaError(req.Stage, err)
	}
	return answer.String(), nil
}

// classifyOllamaError marks client errors permanent; everything else
// (connection failures, 429, 5xx) is transient.
func classifyOllamaError(stage string, err error) error {
	var status ollama.StatusError
	if errors.As(err, &status) {
		if status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500 {
			return &TransientError{Op: stage, Err: err}
		}
		return retry.Permanent(fmt.Errorf("%s: ollama chat failed: %w", stage, err))
	}
	return &TransientError{Op: stage, Err: err}
}

// loadImage resolves http(s) and data: image references to raw bytes.
func (g *OllamaGenerator) loadImage(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		header, payload, ok := strings.Cut(ref, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, retry.Permanent(errors.New("image data URLs must be base64 encoded"))
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("decoding image data URL: %w", err))
		}
		return data, nil
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, retry.Permanent(fmt.Errorf("image reference %q must be an http(s) or data: URL", ref))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Op: StageVisual, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetching image: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &TransientError{Op: StageVisual, Err: err}
		}
		return nil, retry.Permanent(err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &TransientError{Op: StageVisual, Err: err}
	}
	if len(data) > maxImageBytes {
		return nil, retry.Permanent(fmt.Errorf("image exceeds %d bytes", maxImageBytes))
	}
	return data, nil
}
