// Package notify delivers advisory swap status notifications.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cellroute/pkg/types"
)

// Type is the severity of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypePending Type = "pending"
)

// TypeFor maps a swap status to the notification type reported for it.
func TypeFor(s types.Status) Type {
	switch s {
	case types.StatusSuccess:
		return TypeSuccess
	case types.StatusError:
		return TypeError
	default:
		return TypePending
	}
}

// Notification is emitted on every swap status change.
type Notification struct {
	ID     uuid.UUID
	Type   Type
	Header string
	Body   string
	Status types.Status
	TxHash common.Hash
}

// New builds a notification with a fresh id.
func New(status types.Status, header, body string, txHash common.Hash) Notification {
	return Notification{
		ID:     uuid.New(),
		Type:   TypeFor(status),
		Header: header,
		Body:   body,
		Status: status,
		TxHash: txHash,
	}
}

// Notifier receives notifications. Implementations must not block for long;
// delivery failures are the notifier's own business.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	var ev *zerolog.Event
	switch n.Type {
	case TypeError:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}
	ev.Str("id", n.ID.String()).
		Str("type", string(n.Type)).
		Str("status", string(n.Status)).
		Str("tx", n.TxHash.Hex()).
		Str("body", n.Body).
		Msg(n.Header)
}

// ConsoleNotifier prints coloured one-line notifications.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (c *ConsoleNotifier) Notify(_ context.Context, n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s %s  %s\n", Colored(n.Status), n.Header, color.HiBlackString(shortHash(n.TxHash)))
	if n.Body != "" {
		fmt.Fprintf(c.out, "    %s\n", n.Body)
	}
}

// Colored renders a status label in the colour used across the CLI.
func Colored(s types.Status) string {
	label := strings.ToUpper(string(s))
	switch s {
	case types.StatusSuccess:
		return color.GreenString(label)
	case types.StatusError:
		return color.RedString(label)
	case types.StatusPending:
		return color.YellowString(label)
	default:
		return label
	}
}

func shortHash(h common.Hash) string {
	hex := h.Hex()
	return hex[:10] + "…" + hex[len(hex)-8:]
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Recorder keeps every notification it receives. It is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of the notifications received so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
