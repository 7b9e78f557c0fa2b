package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"pdf-tools-bot/internal/domain"
	"pdf-tools-bot/pkg/logger"
)

type recordingRepo struct {
	mu     sync.Mutex
	events []domain.OperationEvent
	seen   chan struct{}
}

func (r *recordingRepo) Track(ctx context.Context, e domain.OperationEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *recordingRepo) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return &domain.Statistics{}, nil
}

func TestPublishConsume(t *testing.T) {
	pubSub := NewPubSub(false)
	defer pubSub.Close()

	repo := &recordingRepo{seen: make(chan struct{}, 1)}
	consumer := NewConsumer(pubSub, repo, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := consumer.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx, messages) }()

	event := domain.OperationEvent{
		ID:             "evt-1",
		ConversationID: "chat",
		UserID:         42,
		Command:        domain.CommandMerge,
		Outcome:        domain.OutcomeSucceeded,
		OccurredAt:     time.Now().UTC(),
	}
	if err := NewPublisher(pubSub).Publish(ctx, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-repo.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not consumed")
	}

	repo.mu.Lock()
	got := repo.events[0]
	repo.mu.Unlock()
	if got.ID != "evt-1" || got.Command != domain.CommandMerge || got.UserID != 42 {
		t.Fatalf("unexpected event: %+v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
}
