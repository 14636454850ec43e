package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	"github.com/PIO-VIA/Snapppy/internal/ws"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

type Receiver interface {
	ReceiveMessage(ctx context.Context, senderName string, msg messages.Message) ([]messages.Message, error)
}

// UpdateFunc gets the conversation refreshed after an incoming message.
type UpdateFunc func(senderName string, conversation []messages.Message)

type Listener struct {
	url      string
	token    string
	receiver Receiver
	log      *slog.Logger
	dialer   *websocket.Dialer

	// OnConnect, when set, runs each time the server greets a new connection.
	OnConnect func()
}

func New(url, token string, receiver Receiver, log *slog.Logger) *Listener {
	return &Listener{
		url:      url,
		token:    token,
		receiver: receiver,
		log:      log.With(slog.String("component", "realtime.listener")),
		dialer:   websocket.DefaultDialer,
	}
}

// Run keeps a connection open and feeds incoming messages to the receiver
// until ctx is cancelled. Lost connections are re-dialled with backoff.
func (l *Listener) Run(ctx context.Context, onUpdate UpdateFunc) error {
	const op = "realtime.Run"

	backoff := minBackoff

	for {
		connected, err := l.listen(ctx, onUpdate)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if connected {
			backoff = minBackoff
		}

		l.log.Warn("connection lost, reconnecting",
			slog.String("op", op),
			slog.Duration("backoff", backoff),
			sl.Err(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context, onUpdate UpdateFunc) (bool, error) {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}

	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial: HTTP %d: %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var evt ws.ServerEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("closed by server")
			}
			return true, fmt.Errorf("read: %w", err)
		}

		l.handle(ctx, evt, onUpdate)
	}
}

func (l *Listener) handle(ctx context.Context, evt ws.ServerEvent, onUpdate UpdateFunc) {
	switch evt.Type {
	case ws.TypeHello:
		l.log.Info("connected")
		if l.OnConnect != nil {
			l.OnConnect()
		}

	case ws.TypeMessageNew:
		if evt.Message == nil {
			l.log.Warn("message event without message")
			return
		}

		conversation, err := l.receiver.ReceiveMessage(ctx, evt.SenderName, *evt.Message)
		if err != nil {
			l.log.Error("failed to record incoming message",
				slog.String("message_id", evt.Message.ID),
				sl.Err(err),
			)
			return
		}

		if onUpdate != nil {
			onUpdate(evt.SenderName, conversation)
		}

	default:
		l.log.Debug("ignoring event", slog.String("type", evt.Type))
	}
}
