package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/infrastructure/resilience"
)

const (
	DefaultAlertSubject  = "bookbot.alerts"
	DefaultReviewSubject = "bookbot.reviews.resolved"
)

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends operational alerts and review-resolved events as JSON.
type Publisher struct {
	nc            *nats.Conn
	conn          conn
	alertSubject  string
	reviewSubject string
	executor      *resilience.Executor
}

type Options struct {
	AlertSubject         string
	ReviewSubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url string) (*Publisher, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	nc, err := nats.Connect(
		url,
		nats.Name("bookbot"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newPublisher(nc, options)
	p.nc = nc
	return p, nil
}

func newPublisher(c conn, options Options) *Publisher {
	alertSubject := options.AlertSubject
	if alertSubject == "" {
		alertSubject = DefaultAlertSubject
	}
	reviewSubject := options.ReviewSubject
	if reviewSubject == "" {
		reviewSubject = DefaultReviewSubject
	}
	return &Publisher{
		conn:          c,
		alertSubject:  alertSubject,
		reviewSubject: reviewSubject,
		executor:      options.ResilienceExecutor,
	}
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

func (p *Publisher) Alert(ctx context.Context, alert domain.Alert) error {
	if alert.At.IsZero() {
		alert.At = time.Now().UTC()
	}
	return p.publishJSON(ctx, p.alertSubject, alert)
}

func (p *Publisher) PublishReviewResolved(ctx context.Context, event domain.ReviewResolved) error {
	return p.publishJSON(ctx, p.reviewSubject, event)
}

func (p *Publisher) publishJSON(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	return wrapPublishError(subject, p.executor.Execute(ctx, "nats.publish."+subject, call, classifyNATSError))
}

// SubscribeAlerts delivers alerts to handler until ctx is done, then drains
// the subscription.
func (p *Publisher) SubscribeAlerts(ctx context.Context, handler func(context.Context, domain.Alert) error) error {
	if p.nc == nil {
		return fmt.Errorf("nats subscribe: not connected")
	}
	sub, err := p.nc.Subscribe(p.alertSubject, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		var alert domain.Alert
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			slog.Warn("alert_decode_failed", "error", err)
			return
		}
		if err := handler(ctx, alert); err != nil {
			slog.Warn("alert_handler_failed", "kind", alert.Kind, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := p.nc.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
