package scheduler

import (
	"context"
	"fmt"

	"converse_backend/internal/automation/repository"
	"converse_backend/platform/apperr"
	"converse_backend/platform/config"
	"converse_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ReplyStore loads recorded replies for delivery.
type ReplyStore interface {
	GetReply(ctx context.Context, replyID uuid.UUID) (*repository.Reply, error)
}

// MessageSender delivers a reply text to the conversation.
type MessageSender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// OfferExpirer sweeps slot offers past their TTL.
type OfferExpirer interface {
	ExpireStaleOffers(ctx context.Context) (int, error)
}

// Worker consumes the scheduler queue.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	replies ReplyStore
	sender  MessageSender
	offers  OfferExpirer
	log     *logger.Logger
}

// NewWorker creates the queue consumer.
func NewWorker(cfg config.SchedulerConfig, replies ReplyStore, sender MessageSender, offers OfferExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		replies: replies,
		sender:  sender,
		offers:  offers,
		log:     log,
	}

	mux.HandleFunc(TaskReplyDispatch, w.handleReplyDispatch)
	mux.HandleFunc(TaskOfferExpiry, w.handleOfferExpiry)

	return w, nil
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleReplyDispatch delivers one recorded reply. Replies held for hybrid
// review and replies that disappeared are acked without delivery so the task
// is not retried.
func (w *Worker) handleReplyDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReplyDispatchPayload(task)
	if err != nil {
		return err
	}

	replyID, err := uuid.Parse(payload.ReplyID)
	if err != nil {
		return err
	}

	reply, err := w.replies.GetReply(ctx, replyID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("dispatch skipped, reply missing", "reply_id", payload.ReplyID)
			return nil
		}
		return err
	}

	if reply.PendingReview {
		w.log.Info("dispatch skipped, reply pending review", "reply_id", payload.ReplyID)
		return nil
	}

	if err := w.sender.Send(ctx, reply.ConversationID, reply.Body); err != nil {
		w.log.DispatchError(reply.ConversationID, err)
		return err
	}
	return nil
}

func (w *Worker) handleOfferExpiry(ctx context.Context, _ *asynq.Task) error {
	n, err := w.offers.ExpireStaleOffers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("slot offers expired", "count", n)
	}
	return nil
}
