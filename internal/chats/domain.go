package chats

import (
	"slices"
	"time"

	"github.com/PIO-VIA/Snapppy/internal/messages"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

type ChatResource struct {
	Interlocutor userdomain.User   `json:"interlocutor"`
	LastMessage  *messages.Message `json:"lastMessage,omitempty"`
}

// LastActivity is the creation time of the last message, or the zero time
// when the chat has none.
func (c ChatResource) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}

type GetChatDetailsRequest struct {
	User         string `json:"user"`
	Interlocutor string `json:"interlocutor"`
	ProjectID    string `json:"projectId"`
}

type ChatDetails struct {
	Messages []messages.Message `json:"messages"`
}

// SortByLastActivity orders chats newest first. Chats without a last message go last.
func SortByLastActivity(chats []ChatResource) {
	slices.SortStableFunc(chats, func(a, b ChatResource) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
}
