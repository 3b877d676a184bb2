// Package repository mirrors judge verdicts to downstream consumers.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"judger/internal/common/mq"
	"judger/internal/judge/sandbox/result"
	appErr "judger/pkg/errors"
)

const headerVerdictClass = "x-verdict-class"

// VerdictEventPublisher publishes final verdicts for async processing.
type VerdictEventPublisher interface {
	PublishVerdict(ctx context.Context, verdict result.Verdict) error
}

// VerdictEvent is the mirrored form of a verdict. Unlike the callback
// payload it carries the internal class.
type VerdictEvent struct {
	SubmitID  int64               `json:"submit_id"`
	Class     result.Class        `json:"class"`
	Results   []result.CaseResult `json:"results,omitempty"`
	Err       string              `json:"err,omitempty"`
	Info      string              `json:"info,omitempty"`
	CreatedAt int64               `json:"created_at"`
}

// MQVerdictEventPublisher publishes verdict events to a message queue.
type MQVerdictEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQVerdictEventPublisher creates a new MQ verdict event publisher.
func NewMQVerdictEventPublisher(producer mq.Producer, topic string) *MQVerdictEventPublisher {
	return &MQVerdictEventPublisher{producer: producer, topic: topic}
}

// PublishVerdict publishes a final verdict keyed by submit id.
func (p *MQVerdictEventPublisher) PublishVerdict(ctx context.Context, verdict result.Verdict) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	event := VerdictEvent{
		SubmitID:  verdict.SubmitID,
		Class:     verdict.Class,
		Results:   verdict.Results,
		Err:       verdict.Err,
		Info:      verdict.Info,
		CreatedAt: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = strconv.FormatInt(verdict.SubmitID, 10)
	message.SetHeader(headerVerdictClass, string(verdict.Class))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.PublishFailed, "publish verdict event failed")
	}
	return nil
}
