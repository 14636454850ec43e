package ws

import "github.com/PIO-VIA/Snapppy/internal/messages"

const (
	TypeHello      = "hello"
	TypeMessageNew = "message.new"
)

type ServerEvent struct {
	Type       string            `json:"type"`
	SenderName string            `json:"senderName,omitempty"`
	Message    *messages.Message `json:"message,omitempty"`
}

func NewMessageEvent(senderName string, msg messages.Message) ServerEvent {
	return ServerEvent{
		Type:       TypeMessageNew,
		SenderName: senderName,
		Message:    &msg,
	}
}
