package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATS publishes every event twice: on <subject>.<kind> and on
// <subject>.all, so consumers can follow one message type or the whole bus.
type NATS struct {
	conn    natsConn
	subject string
}

// DialNATS connects to url. The connection keeps reconnecting in the
// background while the monitor runs.
func DialNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("rs485mon"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}
	return newNATS(nc, subject), nil
}

func newNATS(conn natsConn, subject string) *NATS {
	return &NATS{conn: conn, subject: subject}
}

// Subject returns the subject used for kind.
func (n *NATS) Subject(kind string) string {
	return n.subject + "." + subjectToken(kind)
}

func (n *NATS) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.Subject(e.Kind), data); err != nil {
		return err
	}
	return n.conn.Publish(n.subject+".all", data)
}

// Close flushes pending messages before closing.
func (n *NATS) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := n.conn.FlushWithContext(ctx)
	n.conn.Close()
	return err
}
