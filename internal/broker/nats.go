package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/set-night/rewardhub/internal/domain"
	"github.com/set-night/rewardhub/internal/service"
)

const (
	streamName     = "REWARD_COMMISSIONS"
	consumerPrefix = "rewardhub-"
	applyTimeout   = 30 * time.Second
)

// CommissionBus carries commission events over NATS JetStream. It is a
// service.CommissionDispatcher on the publishing side and feeds a
// service.CommissionApplier on the consuming side.
type CommissionBus struct {
	url     string
	subject string

	nc  *nats.Conn
	js  nats.JetStreamContext
	sub *nats.Subscription
	mu  sync.Mutex
}

var _ service.CommissionDispatcher = (*CommissionBus)(nil)

func NewCommissionBus(url, subject string) *CommissionBus {
	return &CommissionBus{url: url, subject: subject}
}

// Connect dials the server and makes sure the commission stream exists.
func (b *CommissionBus) Connect() error {
	nc, err := nats.Connect(b.url,
		nats.Name("rewardhub"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Error("nats disconnected", "error", err)
				return
			}
			slog.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("create jetstream context: %w", err)
	}

	b.nc = nc
	b.js = js

	if err := b.ensureStream(); err != nil {
		nc.Close()
		return err
	}

	slog.Info("connected to nats", "url", b.url, "subject", b.subject)
	return nil
}

func (b *CommissionBus) ensureStream() error {
	if _, err := b.js.StreamInfo(streamName); err == nil {
		return nil
	}
	_, err := b.js.AddStream(&nats.StreamConfig{
		Name:        streamName,
		Subjects:    []string{b.subject},
		Retention:   nats.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Duplicates:  10 * time.Minute,
		Description: "referral commission events",
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}
	slog.Info("created jetstream stream", "stream", streamName, "subject", b.subject)
	return nil
}

// Dispatch publishes event without waiting for the server ack. The event id
// doubles as the JetStream message id so retried publishes are deduplicated.
func (b *CommissionBus) Dispatch(event domain.CommissionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal commission event", "error", err, "event_id", event.ID)
		return
	}
	if _, err := b.js.PublishAsync(b.subject, data, nats.MsgId(event.ID.String())); err != nil {
		slog.Error("publish commission event", "error", err, "event_id", event.ID)
	}
}

// Subscribe starts a durable queue consumer that hands every event to
// applier. Instances sharing the subject split the work. Failed events are
// redelivered up to three times.
func (b *CommissionBus) Subscribe(applier service.CommissionApplier) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	durable := consumerPrefix + strings.NewReplacer(".", "_", "*", "wildcard", ">", "all").Replace(b.subject)
	sub, err := b.js.QueueSubscribe(b.subject, durable, func(msg *nats.Msg) {
		if err := handleCommission(applier, msg.Data); err != nil {
			slog.Error("handle commission message", "error", err, "subject", msg.Subject)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nak commission message", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("ack commission message", "error", ackErr)
		}
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(3),
		nats.AckWait(applyTimeout),
	)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.subject, err)
	}
	b.sub = sub
	slog.Info("subscribed to commission events", "subject", b.subject, "durable", durable)
	return nil
}

func handleCommission(applier service.CommissionApplier, data []byte) error {
	var event domain.CommissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// A malformed payload will never parse; redelivery cannot help.
		slog.Error("drop malformed commission event", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	return applier.Apply(ctx, event)
}

// Close drains pending publishes and closes the connection.
func (b *CommissionBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil {
			slog.Error("unsubscribe commission events", "error", err)
		}
		b.sub = nil
	}
	if b.js != nil {
		select {
		case <-b.js.PublishAsyncComplete():
		case <-time.After(5 * time.Second):
			slog.Warn("timed out waiting for pending commission publishes")
		}
	}
	if b.nc != nil {
		b.nc.Close()
		slog.Info("nats connection closed")
	}
}
