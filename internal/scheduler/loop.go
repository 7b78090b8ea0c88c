package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"meetly/internal/domain"
)

const defaultConcurrency = 3

// Engine consumes inbound messages from the bus and feeds them to the
// controller. Turns for different sessions run concurrently; turns for the
// same session serialize on the session lock.
type Engine struct {
	controller  *Controller
	bus         domain.MessageBus
	logger      *slog.Logger
	concurrency int
}

func NewEngine(controller *Controller, bus domain.MessageBus, concurrency int, logger *slog.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{
		controller:  controller,
		bus:         bus,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run blocks until the context is cancelled or the bus closes.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("scheduling engine started", "concurrency", e.concurrency)

	sem := make(chan struct{}, e.concurrency)
	inbound := e.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scheduling engine stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				e.logger.Info("inbound channel closed, engine stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				e.processMessage(ctx, m)
			}(msg)
		}
	}
}

func (e *Engine) processMessage(ctx context.Context, msg domain.InboundMessage) {
	e.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"content_len", len(msg.Content),
	)

	// Signal the frontend that a reply is on the way.
	e.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Typing:  true,
	})

	replies, err := e.handleMessage(ctx, msg)
	if err != nil {
		e.logger.Error("message processing failed", "error", err)
		replies = []string{"Sorry, something went wrong on my end. Please try that again."}
	}

	for _, reply := range replies {
		e.bus.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply,
			Format:  "text",
		})
	}
}

// ProcessDirect handles a message synchronously and returns the combined
// reply. Used by the CLI channel and the web chat API.
func (e *Engine) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	replies, err := e.handleMessage(ctx, domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  "user",
		Content:   content,
		Timestamp: time.Now(),
	})
	if err != nil {
		return "", err
	}
	return strings.Join(replies, "\n\n"), nil
}

func (e *Engine) handleMessage(ctx context.Context, msg domain.InboundMessage) ([]string, error) {
	s, err := e.controller.Sessions().GetOrCreate(ctx, msg.Channel, msg.ChatID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	replies := e.controller.HandleTurn(ctx, s, msg.Content)

	mgr := e.controller.Sessions()
	mgr.Record(ctx, s, "user", msg.Content)
	for _, r := range replies {
		mgr.Record(ctx, s, "assistant", r)
	}
	return replies, nil
}
