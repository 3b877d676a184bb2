package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"judger/internal/common/mq"
	"judger/internal/judge/sandbox/result"
	appErr "judger/pkg/errors"
)

type fakeProducer struct {
	topic    string
	messages []*mq.Message
	err      error
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestPublishVerdict(t *testing.T) {
	t.Parallel()
	producer := &fakeProducer{}
	pub := NewMQVerdictEventPublisher(producer, "judge.verdicts")
	verdict := result.Verdict{
		SubmitID: 9,
		Results:  []result.CaseResult{{TestCase: "1", Outcome: result.Outcome{Result: result.StatusWrongAnswer}}},
		Class:    result.ClassWrongAnswer,
	}
	if err := pub.PublishVerdict(context.Background(), verdict); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if producer.topic != "judge.verdicts" || len(producer.messages) != 1 {
		t.Fatalf("unexpected publish: topic=%s count=%d", producer.topic, len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.ID != "9" || msg.Headers[headerVerdictClass] != "WrongAnswer" {
		t.Fatalf("unexpected message metadata: %+v", msg)
	}
	var event VerdictEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatalf("decode event failed: %v", err)
	}
	if event.SubmitID != 9 || event.Class != result.ClassWrongAnswer || len(event.Results) != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestPublishVerdictErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var nilPub *MQVerdictEventPublisher
	if err := nilPub.PublishVerdict(ctx, result.Verdict{}); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if err := NewMQVerdictEventPublisher(&fakeProducer{}, "").PublishVerdict(ctx, result.Verdict{}); !appErr.Is(err, appErr.InvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	failing := &fakeProducer{err: errors.New("broker down")}
	if err := NewMQVerdictEventPublisher(failing, "t").PublishVerdict(ctx, result.Verdict{SubmitID: 1}); !appErr.Is(err, appErr.PublishFailed) {
		t.Fatalf("expected publish failure, got %v", err)
	}
}
