// Package notify publishes run lifecycle notifications to NATS.
//
// Subjects are <prefix>.WillStart, <prefix>.DidFinish and <prefix>.DidFail.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/retry"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

// Notification names.
const (
	WillStart = "WillStart"
	DidFinish = "DidFinish"
	DidFail   = "DidFail"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "publish"

// Config controls the NATS connection.
type Config struct {
	URL           string
	SubjectPrefix string
	// JetStream publishes with acknowledgement to a stream bound to the
	// subjects instead of plain core NATS publishes.
	JetStream bool
	Timeout   time.Duration
	Retry     retry.Policy
}

// Publisher sends one message.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Notification is the JSON body of every message.
type Notification struct {
	Event      string    `json:"event"`
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	Kinds      []string  `json:"kinds"`
	Steps      []string  `json:"steps,omitempty"`
	Time       time.Time `json:"time"`
	Outcome    string    `json:"outcome,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Items      int       `json:"items,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	FailedStep string    `json:"failed_step,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NATSPublisher publishes over a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
}

// Connect dials cfg.URL, retrying per cfg.Retry.
func Connect(ctx context.Context, cfg Config) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, ferrors.ConfigError("notify.nats.url is required").Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var conn *nats.Conn
	err := cfg.Retry.Do(ctx, "nats connect", func(context.Context) error {
		var err error
		conn, err = nats.Connect(cfg.URL,
			nats.Name("sitepublish"),
			nats.Timeout(cfg.Timeout),
			nats.MaxReconnects(3),
		)
		if err != nil {
			return ferrors.NotifyError("failed to connect to NATS").
				WithCause(err).
				WithContext("url", cfg.URL).
				Build()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := &NATSPublisher{conn: conn, timeout: cfg.Timeout}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, ferrors.NotifyError("failed to create JetStream context").WithCause(err).Build()
		}
		p.js = js
	}
	return p, nil
}

// Publish sends data on subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.js != nil {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		_, err := p.js.Publish(ctx, subject, data)
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}
	return p.conn.FlushTimeout(p.timeout)
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

// Observer turns pipeline callbacks into notifications. Delivery failures
// are logged and do not fail the run.
type Observer struct {
	pipeline.NoopObserver
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewObserver returns an Observer publishing through pub.
func NewObserver(pub Publisher, prefix string, logger *slog.Logger) *Observer {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{pub: pub, prefix: prefix, logger: logger}
}

// Subject returns the subject for a notification name.
func (o *Observer) Subject(event string) string { return o.prefix + "." + event }

func (o *Observer) OnRunStart(ctx context.Context, run *pipeline.Run) {
	n := base(WillStart, run)
	n.Steps = run.Steps
	o.send(ctx, n)
}

func (o *Observer) OnRunComplete(ctx context.Context, run *pipeline.Run, outcome pipeline.Outcome, published *site.Published, err error) {
	event := DidFinish
	if outcome != pipeline.OutcomeSuccess {
		event = DidFail
	}
	n := base(event, run)
	n.Outcome = string(outcome)
	n.DurationMS = time.Since(run.Started).Milliseconds()
	if published != nil {
		n.Pages = len(published.Pages)
		for _, s := range published.Sections {
			n.Items += len(s.Items)
		}
	}
	if err != nil {
		n.Error = err.Error()
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			n.FailedStep = perr.Step
		}
	}
	o.send(ctx, n)
}

func base(event string, run *pipeline.Run) Notification {
	kinds := make([]string, 0, 3)
	for _, k := range run.Kinds.Sorted() {
		kinds = append(kinds, string(k))
	}
	return Notification{Event: event, RunID: run.ID, Site: run.Site, Kinds: kinds, Time: time.Now().UTC()}
}

func (o *Observer) send(ctx context.Context, n Notification) {
	subject := o.Subject(n.Event)
	data, err := json.Marshal(n)
	if err == nil {
		err = o.pub.Publish(ctx, subject, data)
	}
	if err != nil {
		o.logger.Warn("Failed to publish notification",
			logfields.RunID(n.RunID),
			slog.String("subject", subject),
			logfields.Error(err))
		return
	}
	o.logger.Debug("Published notification", logfields.RunID(n.RunID), slog.String("subject", subject))
}
