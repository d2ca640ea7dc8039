package ui

import (
	"fmt"
	"time"

	"github.com/muurk/rs485gw/internal/client"
)

// Kind classifies a console line.
type Kind int

const (
	KindReply Kind = iota
	KindError
	KindRx
	KindEvent
	KindSent
	KindInvalid
)

// Tag returns the fixed-width label shown before a line.
func (k Kind) Tag() string {
	switch k {
	case KindError:
		return "ERR  "
	case KindRx:
		return "RX   "
	case KindEvent:
		return "EVENT"
	case KindSent:
		return "SENT "
	case KindInvalid:
		return "???  "
	default:
		return "OK   "
	}
}

func (k Kind) render(s string) string {
	switch k {
	case KindError, KindInvalid:
		return ErrTagStyle.Render(s)
	case KindRx:
		return RxTagStyle.Render(s)
	case KindEvent:
		return EventTagStyle.Render(s)
	case KindSent:
		return SentTagStyle.Render(s)
	default:
		return OKTagStyle.Render(s)
	}
}

// Classify returns the console kind of a received message.
func Classify(msg client.Message) Kind {
	switch {
	case msg.Reply == nil:
		return KindInvalid
	case msg.Reply.IsRx():
		return KindRx
	case msg.Reply.IsEvent():
		return KindEvent
	case msg.Reply.Failed():
		return KindError
	default:
		return KindReply
	}
}

// Summary describes a received message in a few words.
func Summary(msg client.Message) string {
	r := msg.Reply
	switch Classify(msg) {
	case KindRx:
		return fmt.Sprintf("bus %d  %s", r.Bus, r.RxHex)
	case KindEvent:
		return r.Event
	case KindError:
		if r.Cmd != "" {
			return r.Cmd + ": " + r.Err
		}
		return r.Err
	case KindInvalid:
		return msg.Raw
	default:
		return msg.Raw
	}
}

// FormatLine renders one console line: time, tag, text.
func FormatLine(at time.Time, kind Kind, text string) string {
	return TimestampStyle.Render(at.Format("15:04:05.000")) + "  " +
		kind.render(kind.Tag()) + "  " +
		BodyStyle.Render(text)
}

// FormatMessage renders a received message as one console line.
func FormatMessage(msg client.Message) string {
	at := msg.Received
	if at.IsZero() {
		at = time.Now()
	}
	return FormatLine(at, Classify(msg), Summary(msg))
}
