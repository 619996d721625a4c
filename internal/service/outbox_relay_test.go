package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/surfaceops/surface-api/config"
	"github.com/surfaceops/surface-api/internal/domain/model"
	"github.com/surfaceops/surface-api/internal/mocks"
)

func relayConfig() config.OutboxConfig {
	return config.OutboxConfig{
		Interval:    time.Second,
		BatchSize:   50,
		MaxAttempts: 3,
		Topic:       "jobs.completed",
	}
}

func outboxEntry(id string, attempts int) *model.OutboxEntry {
	payload, _ := json.Marshal(map[string]string{"job_id": "job-" + id})
	return &model.OutboxEntry{
		ID:       id,
		JobID:    "job-" + id,
		Payload:  payload,
		Status:   model.OutboxStatusPending,
		Attempts: attempts,
	}
}

func TestOutboxRelay_DrainOnce_PublishesAndMarksSent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOutboxRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	relay := MustNewOutboxRelay(OutboxRelayOptions{Repo: repo, Publisher: publisher, Config: relayConfig()})

	entries := []*model.OutboxEntry{outboxEntry("1", 0), outboxEntry("2", 0)}
	repo.EXPECT().PendingBatch(gomock.Any(), 50).Return(entries, nil)

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), "jobs.completed", entries[0].Payload).Return(nil),
		repo.EXPECT().MarkSent(gomock.Any(), "1").Return(nil),
		publisher.EXPECT().Publish(gomock.Any(), "jobs.completed", entries[1].Payload).Return(nil),
		repo.EXPECT().MarkSent(gomock.Any(), "2").Return(nil),
	)

	require.NoError(t, relay.DrainOnce(context.Background()))
}

func TestOutboxRelay_DrainOnce_PublishFailureStaysPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOutboxRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	relay := MustNewOutboxRelay(OutboxRelayOptions{Repo: repo, Publisher: publisher, Config: relayConfig()})

	repo.EXPECT().PendingBatch(gomock.Any(), 50).Return([]*model.OutboxEntry{outboxEntry("1", 0)}, nil)
	publisher.EXPECT().Publish(gomock.Any(), "jobs.completed", gomock.Any()).Return(errors.New("redis down"))
	// First failure is not terminal under MaxAttempts=3.
	repo.EXPECT().MarkError(gomock.Any(), "1", false).Return(nil)

	require.NoError(t, relay.DrainOnce(context.Background()))
}

func TestOutboxRelay_DrainOnce_ExhaustedEntryGoesTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOutboxRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	relay := MustNewOutboxRelay(OutboxRelayOptions{Repo: repo, Publisher: publisher, Config: relayConfig()})

	repo.EXPECT().PendingBatch(gomock.Any(), 50).Return([]*model.OutboxEntry{outboxEntry("1", 2)}, nil)
	publisher.EXPECT().Publish(gomock.Any(), "jobs.completed", gomock.Any()).Return(errors.New("redis down"))
	repo.EXPECT().MarkError(gomock.Any(), "1", true).Return(nil)

	require.NoError(t, relay.DrainOnce(context.Background()))
}

func TestOutboxRelay_DrainOnce_MarkSentFailureKeepsGoing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOutboxRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	relay := MustNewOutboxRelay(OutboxRelayOptions{Repo: repo, Publisher: publisher, Config: relayConfig()})

	entries := []*model.OutboxEntry{outboxEntry("1", 0), outboxEntry("2", 0)}
	repo.EXPECT().PendingBatch(gomock.Any(), 50).Return(entries, nil)

	publisher.EXPECT().Publish(gomock.Any(), "jobs.completed", gomock.Any()).Return(nil).Times(2)
	// Entry 1 was published but its row stays pending; the next drain sends a
	// duplicate rather than losing the event.
	repo.EXPECT().MarkSent(gomock.Any(), "1").Return(errors.New("db blip"))
	repo.EXPECT().MarkSent(gomock.Any(), "2").Return(nil)

	require.NoError(t, relay.DrainOnce(context.Background()))
}

func TestOutboxRelay_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockOutboxRepository(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	cfg := relayConfig()
	cfg.Interval = 10 * time.Millisecond
	relay := MustNewOutboxRelay(OutboxRelayOptions{Repo: repo, Publisher: publisher, Config: cfg})

	repo.EXPECT().PendingBatch(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "graceful shutdown returns nil")
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
