package messages

import (
	"slices"
	"time"
)

type Ack string

const (
	AckSent     Ack = "SENT"
	AckReceived Ack = "RECEIVED"
	AckRead     Ack = "READ"
)

type Attachment struct {
	Filename  string    `json:"filename,omitempty"`
	Mimetype  string    `json:"mimetype,omitempty"`
	Filesize  int64     `json:"filesize,omitempty"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID          string       `json:"id"`
	Body        string       `json:"body"`
	Sender      string       `json:"sender"`
	Receiver    string       `json:"receiver"`
	Ack         Ack          `json:"ack,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Attachments []Attachment `json:"messageAttachements,omitempty"`
}

// Involves reports whether userID sent or received the message.
func (m Message) Involves(userID string) bool {
	return m.Sender == userID || m.Receiver == userID
}

type SendMessageRequest struct {
	Body        string       `json:"body"`
	ProjectID   string       `json:"projectId"`
	ReceiverID  string       `json:"receiverId"`
	SenderID    string       `json:"senderId"`
	Attachments []Attachment `json:"messageAttachements,omitempty"`
}

func (r SendMessageRequest) Validate() error {
	if r.SenderID == "" {
		return ErrSenderIsRequired
	}
	if r.ReceiverID == "" {
		return ErrReceiverIsRequired
	}
	if r.Body == "" && len(r.Attachments) == 0 {
		return ErrTextOrAttachmentsIsRequired
	}
	return nil
}

// Conversation returns the messages involving userID, oldest first.
// The input slice is left untouched.
func Conversation(msgs []Message, userID string) []Message {
	result := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Involves(userID) {
			result = append(result, m)
		}
	}

	SortByCreatedAt(result)

	return result
}

func SortByCreatedAt(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// ShiftCreatedAt returns a copy of msgs with every CreatedAt moved by d.
func ShiftCreatedAt(msgs []Message, d time.Duration) []Message {
	shifted := make([]Message, len(msgs))
	for i, m := range msgs {
		m.CreatedAt = m.CreatedAt.Add(d)
		shifted[i] = m
	}
	return shifted
}

// Merge appends incoming messages whose id is not already in history.
// Messages without an id are always appended.
func Merge(history []Message, incoming ...Message) []Message {
	seen := make(map[string]struct{}, len(history))
	for _, m := range history {
		if m.ID != "" {
			seen[m.ID] = struct{}{}
		}
	}

	for _, m := range incoming {
		if m.ID != "" {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
		}
		history = append(history, m)
	}

	return history
}
