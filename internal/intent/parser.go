package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meetly/internal/domain"
)

// ErrInsufficient signals that the utterance did not contain enough
// information to form a meeting request.
var ErrInsufficient = errors.New("not enough information to form a meeting request")

// Parser turns a free-text utterance into a meeting request draft.
type Parser interface {
	Parse(ctx context.Context, utterance string, now time.Time) (*domain.MeetingRequest, error)
}

// Chain tries each parser in order, falling back to the next on failure.
// The last parser's error is returned when every parser fails.
type Chain struct {
	parsers []Parser
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, parsers ...Parser) *Chain {
	return &Chain{parsers: parsers, logger: logger}
}

func (c *Chain) Parse(ctx context.Context, utterance string, now time.Time) (*domain.MeetingRequest, error) {
	var lastErr error
	for i, p := range c.parsers {
		req, err := p.Parse(ctx, utterance, now)
		if err == nil {
			if i > 0 {
				c.logger.Info("intent: used fallback parser", "attempt", i+1)
			}
			return req, nil
		}
		lastErr = err
		if i < len(c.parsers)-1 {
			c.logger.Warn("intent: parser failed, trying next", "attempt", i+1, "error", err)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no parsers configured")
	}
	return nil, lastErr
}
