package queue

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"counter-pipeline/domain"
	"counter-pipeline/metrics"
)

const defaultPublishTimeout = 5 * time.Second

// Outcome reports a single publish attempt. It is informational only.
type Outcome struct {
	Published bool
	MessageID string
	Err       error
}

type addressResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Publisher makes one bounded attempt to put an increment event on the queue.
type Publisher struct {
	resolver addressResolver
	sender   Sender
	timeout  time.Duration
}

func NewPublisher(resolver addressResolver, sender Sender, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{resolver: resolver, sender: sender, timeout: timeout}
}

// Publish never returns an error or panics; failures are reported in the
// Outcome. The attempt ignores caller cancellation and is bounded by the
// publisher timeout.
func (p *Publisher) Publish(ctx context.Context, ev domain.IncrementEvent) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = p.failed("panic", fmt.Errorf("%v", r))
		}
		if out.Published {
			metrics.EventsPublished.Inc()
		} else {
			metrics.PublishFailures.Inc()
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	body, err := ev.Encode()
	if err != nil {
		return p.failed("encode", err)
	}
	addr, err := p.resolver.Resolve(ctx)
	if err != nil {
		return p.failed("resolve", err)
	}
	id, err := p.sender.Send(ctx, addr, string(body), map[string]string{
		domain.MessageTypeAttribute: domain.CounterIncrementMessageType,
	})
	if err != nil {
		return p.failed("send", err)
	}
	log.WithFields(log.Fields{"message_id": id, "timestamp": ev.Timestamp}).Debug("increment event published")
	return Outcome{Published: true, MessageID: id}
}

func (p *Publisher) failed(stage string, err error) Outcome {
	err = domain.NewStageError(domain.ErrPublish, stage, err)
	log.WithError(err).Warn("increment event not published")
	return Outcome{Err: err}
}
