// Package scheduler moves delayed work through Redis-backed asynq queues:
// outbound reply dispatch after the configured typing delay, and the periodic
// slot-offer expiry sweep.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReplyDispatch = "replies.dispatch"

const TaskOfferExpiry = "offers.expire_stale"

type ReplyDispatchPayload struct {
	ReplyID string `json:"replyId"`
}

func NewReplyDispatchTask(payload ReplyDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReplyDispatch, data), nil
}

func ParseReplyDispatchPayload(task *asynq.Task) (ReplyDispatchPayload, error) {
	var payload ReplyDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReplyDispatchPayload{}, err
	}
	return payload, nil
}

func NewOfferExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskOfferExpiry, nil)
}
