package devserver

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/config"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

// Store is the in-memory state of the development API.
type Store struct {
	mu       sync.RWMutex
	users    []userdomain.User
	tokens   map[string]string
	messages []messages.Message
	now      func() time.Time
}

func NewStore(projectID string, seed []config.SeedUser) *Store {
	s := &Store{
		tokens: make(map[string]string),
		now:    time.Now,
	}

	for _, u := range seed {
		s.AddUser(userdomain.User{
			ExternalID:  u.ExternalID,
			DisplayName: u.DisplayName,
			ProjectID:   projectID,
		}, u.Token)
	}

	return s
}

func (s *Store) AddUser(u userdomain.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = append(s.users, u)
	if token != "" {
		s.tokens[token] = u.ExternalID
	}
}

func (s *Store) UserByToken(token string) (userdomain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokens[token]
	if !ok {
		return userdomain.User{}, false
	}

	u, ok := s.userLocked(id)
	return u, ok
}

func (s *Store) User(id string) (userdomain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.userLocked(id)
	if !ok {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) userLocked(id string) (userdomain.User, bool) {
	for _, u := range s.users {
		if u.ExternalID == id {
			return u, true
		}
	}
	return userdomain.User{}, false
}

// FilterByDisplayName returns users whose display name contains name, ignoring
// case. Exact matches come first.
func (s *Store) FilterByDisplayName(name, projectID string) []userdomain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(name))

	var exact, partial []userdomain.User
	for _, u := range s.users {
		if projectID != "" && u.ProjectID != "" && u.ProjectID != projectID {
			continue
		}
		hay := strings.ToLower(u.DisplayName)
		switch {
		case hay == needle:
			exact = append(exact, u)
		case needle != "" && strings.Contains(hay, needle):
			partial = append(partial, u)
		}
	}

	return append(exact, partial...)
}

// Chats lists one entry per interlocutor userID exchanged messages with,
// in order of first contact.
func (s *Store) Chats(userID string) []chats.ChatResource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	var list []chats.ChatResource

	for _, m := range s.messages {
		if !m.Involves(userID) {
			continue
		}

		other := m.Receiver
		if m.Receiver == userID {
			other = m.Sender
		}

		last := m
		if i, ok := index[other]; ok {
			list[i].LastMessage = &last
			continue
		}

		u, ok := s.userLocked(other)
		if !ok {
			u = userdomain.User{ExternalID: other}
		}
		index[other] = len(list)
		list = append(list, chats.ChatResource{Interlocutor: u, LastMessage: &last})
	}

	return list
}

func (s *Store) Conversation(userID, interlocutorID string) []messages.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []messages.Message{}
	for _, m := range s.messages {
		if (m.Sender == userID && m.Receiver == interlocutorID) ||
			(m.Sender == interlocutorID && m.Receiver == userID) {
			result = append(result, m)
		}
	}
	return result
}

func (s *Store) AddMessage(req messages.SendMessageRequest) (messages.Message, error) {
	if err := req.Validate(); err != nil {
		return messages.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userLocked(req.ReceiverID); !ok {
		return messages.Message{}, userdomain.ErrUserNotFound
	}

	id, err := uuid.NewV7()
	if err != nil {
		return messages.Message{}, err
	}

	now := s.now().UTC()

	atts := make([]messages.Attachment, len(req.Attachments))
	for i, a := range req.Attachments {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		atts[i] = a
	}

	msg := messages.Message{
		ID:        id.String(),
		Body:      req.Body,
		Sender:    req.SenderID,
		Receiver:  req.ReceiverID,
		Ack:       messages.AckSent,
		CreatedAt: now,
	}
	if len(atts) > 0 {
		msg.Attachments = atts
	}

	s.messages = append(s.messages, msg)

	return msg, nil
}
