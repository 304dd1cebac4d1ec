package shipper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const natsFlushTimeout = 5 * time.Second

// NATSTransport publishes each envelope as JSON to
// {prefix}.{monitorID}.{kind}.
type NATSTransport struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// NewNATSTransport connects to url. The connection reconnects on its own;
// publishes made while disconnected fail the flush and are retried by the
// shipper.
func NewNATSTransport(url, prefix, monitorID string, log zerolog.Logger) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name("linkwatch-agent-"+monitorID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("shipper: nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("shipper: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("shipper: nats connect: %w", err)
	}
	return &NATSTransport{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject an envelope is published on.
func (t *NATSTransport) Subject(env Envelope) string {
	return strings.Join([]string{t.prefix, subjectToken(env.MonitorID), string(env.Kind)}, ".")
}

func (t *NATSTransport) Deliver(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", ErrPermanent, err)
	}
	if err := t.nc.Publish(t.Subject(env), data); err != nil {
		return fmt.Errorf("shipper: nats publish: %w", err)
	}

	timeout := natsFlushTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if err := t.nc.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("shipper: nats flush: %w", err)
	}
	return nil
}

func (t *NATSTransport) Close() error {
	t.nc.Close()
	return nil
}

// subjectToken makes s safe for use as a single subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
