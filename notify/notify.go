// Package notify delivers applicant notifications by email and SMS.
// Delivery is best effort: failures are retried, logged and counted but
// never returned to the caller.
package notify

import (
	"context"
	"time"

	"gcx-supplier-go/metrics"
	"gcx-supplier-go/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	KindSubmitted          Kind = "application_submitted"
	KindDocumentsRequested Kind = "documents_requested"
	KindApproved           Kind = "application_approved"
	KindRejected           Kind = "application_rejected"
	KindDocumentRejected   Kind = "document_rejected"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is what the workflow asks to be told to an applicant.
type Message struct {
	Kind          Kind
	ApplicationID uint
	TrackingCode  string
	BusinessName  string
	Email         string
	Telephone     string
	Context       map[string]string
}

// Envelope is a rendered message for one channel and recipient.
type Envelope struct {
	Channel      string `json:"channel"`
	Kind         Kind   `json:"kind"`
	To           string `json:"to"`
	Subject      string `json:"subject,omitempty"`
	Body         string `json:"body"`
	TrackingCode string `json:"tracking_code"`
}

type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// Notifier reports whether a delivery was attempted at all.
type Notifier interface {
	Notify(ctx context.Context, msg Message) bool
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) bool { return false }

type Dispatcher struct {
	email   Sender
	sms     Sender
	retries int
	backoff time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type DispatcherOptions struct {
	Email   Sender
	SMS     Sender
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	return &Dispatcher{
		email:   opts.Email,
		sms:     opts.SMS,
		retries: opts.Retries,
		backoff: opts.Backoff,
		logger:  logger.Named("notify"),
		metrics: opts.Metrics,
	}
}

// Notify renders msg and sends email and SMS concurrently.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) bool {
	log := d.logger.With(zap.String("kind", string(msg.Kind)), zap.String("tracking_code", msg.TrackingCode))

	rendered, err := render(msg)
	if err != nil {
		log.Error("render notification failed", zap.Error(err))
		return false
	}

	var g errgroup.Group
	attempted := false

	if d.email != nil && msg.Email != "" {
		attempted = true
		env := Envelope{
			Channel:      ChannelEmail,
			Kind:         msg.Kind,
			To:           msg.Email,
			Subject:      rendered.Subject,
			Body:         rendered.Email,
			TrackingCode: msg.TrackingCode,
		}
		g.Go(func() error {
			d.deliver(ctx, log, d.email, env)
			return nil
		})
	}

	if d.sms != nil && msg.Telephone != "" && rendered.SMS != "" {
		attempted = true
		env := Envelope{
			Channel:      ChannelSMS,
			Kind:         msg.Kind,
			To:           utils.FormatSMSPhone(msg.Telephone),
			Body:         rendered.SMS,
			TrackingCode: msg.TrackingCode,
		}
		g.Go(func() error {
			d.deliver(ctx, log, d.sms, env)
			return nil
		})
	}

	_ = g.Wait()
	return attempted
}

func (d *Dispatcher) deliver(ctx context.Context, log *zap.Logger, s Sender, env Envelope) {
	log = log.With(zap.String("channel", env.Channel))
	delay := d.backoff

	var err error
	for attempt := 1; attempt <= d.retries+1; attempt++ {
		if err = s.Send(ctx, env); err == nil {
			d.metrics.Notification(env.Channel, nil)
			log.Debug("notification sent", zap.Int("attempt", attempt))
			return
		}
		log.Warn("notification attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt > d.retries {
			break
		}
		if werr := sleep(ctx, delay); werr != nil {
			err = werr
			break
		}
		delay *= 2
	}
	d.metrics.Notification(env.Channel, err)
	log.Error("notification not delivered", zap.Error(err))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
