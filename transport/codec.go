package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/mediajoin/errors"
	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/natsclient"
	"github.com/c360/mediajoin/view"
)

// Message headers
const (
	HeaderFormat = "Mediajoin-Format"
	HeaderPTS    = "Mediajoin-Pts"
	HeaderID     = "Mediajoin-Id"
)

// Conn is the part of natsclient.Client the transport needs
type Conn interface {
	PublishMsg(ctx context.Context, msg *nats.Msg) error
	Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (*nats.Subscription, error)
	Unsubscribe(sub *nats.Subscription) error
}

var _ Conn = (*natsclient.Client)(nil)

// Encode builds the message for buf on subject. The body aliases buf.Data.
func Encode(subject string, buf *view.Buffer) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = buf.Data
	if buf.Format != (format.Descriptor{}) {
		msg.Header.Set(HeaderFormat, buf.Format.Caps())
	}
	msg.Header.Set(HeaderPTS, strconv.FormatInt(int64(buf.PTS), 10))
	msg.Header.Set(HeaderID, buf.ID.String())
	return msg
}

// Decode rebuilds a buffer from msg. A missing format header leaves the format
// zero so the receiving port tags it; a missing or malformed id gets a fresh one.
func Decode(msg *nats.Msg, table *format.Table) (*view.Buffer, error) {
	buf := &view.Buffer{Data: msg.Data}

	if caps := msg.Header.Get(HeaderFormat); caps != "" {
		f, err := format.Parse(caps, table)
		if err != nil {
			return nil, errors.Wrap(err, "transport", "Decode", "format header")
		}
		buf.Format = f
	}

	if pts := msg.Header.Get(HeaderPTS); pts != "" {
		n, err := strconv.ParseInt(pts, 10, 64)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s=%q", errors.ErrInvalidFormat, HeaderPTS, pts), "transport", "Decode", "pts header")
		}
		buf.PTS = time.Duration(n)
	}

	id, err := uuid.Parse(msg.Header.Get(HeaderID))
	if err != nil {
		id = uuid.New()
	}
	buf.ID = id
	return buf, nil
}
