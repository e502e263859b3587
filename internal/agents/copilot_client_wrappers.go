package agents

import (
	"context"

	copilot "github.com/github/copilot-sdk/go"
)

//go:generate go tool mockgen -source=copilot_client_wrappers.go -destination=mock_copilot_client_wrappers.go -package=agents

// copilotSession is the slice of [*copilot.Session] a generation stage uses.
type copilotSession interface {
	On(handler copilot.SessionEventHandler) func()
	SendAndWait(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error)
	// ID reports the session identifier for log correlation.
	ID() string
}

// copilotClient is the slice of [*copilot.Client] the generator drives.
type copilotClient interface {
	Start(ctx context.Context) error
	Stop() error
	CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error)
}

func newCopilotClient(opts *copilot.ClientOptions) copilotClient {
	return sdkClient{copilot.NewClient(opts)}
}

// sdkClient inherits Start and Stop and narrows CreateSession's result.
type sdkClient struct {
	*copilot.Client
}

func (c sdkClient) CreateSession(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
	s, err := c.Client.CreateSession(ctx, config)
	if err != nil {
		return nil, err
	}
	return sdkSession{s}, nil
}

// sdkSession inherits On and SendAndWait. The SDK exposes the session ID as a
// field, so ID reads it.
type sdkSession struct {
	*copilot.Session
}

func (s sdkSession) ID() string { return s.Session.SessionID }
