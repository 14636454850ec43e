package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	"github.com/PIO-VIA/Snapppy/internal/uploads"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

const (
	KeyUser      = "user"
	KeyUserChats = "userChats"

	contactKeyPrefix = "contact:"

	sendErrorTitle   = "Send error"
	sendFailedText   = "The message could not be sent. Please try again later. "
	updateFailedText = "Failed to update the chat. "
)

type API interface {
	CurrentUser(ctx context.Context) (*userdomain.User, error)
	ListUserChats(ctx context.Context, userID, projectID string) ([]chats.ChatResource, error)
	GetChatDetails(ctx context.Context, req chats.GetChatDetailsRequest) (*chats.ChatDetails, error)
	FilterUsersByDisplayName(ctx context.Context, req userdomain.FilterRequest) ([]userdomain.User, error)
	SendMessage(ctx context.Context, req messages.SendMessageRequest) ([]messages.Message, error)
}

type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Notifier interface {
	Alert(title, message string)
}

type Uploader interface {
	Upload(ctx context.Context, f uploads.File) (key string, err error)
}

// PendingFunc receives the optimistic copy of an outgoing message before it
// reaches the API.
type PendingFunc func(messages.Message)

type Options struct {
	ProjectID string
	// ClockOffset is added to server timestamps before they are cached.
	ClockOffset time.Duration
	// Uploader is optional; without it attachments keep their local path.
	Uploader Uploader
}

type Service struct {
	api         API
	kv          KV
	alerts      Notifier
	uploader    Uploader
	projectID   string
	clockOffset time.Duration
	log         *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(api API, kv KV, alerts Notifier, log *slog.Logger, opts Options) *Service {
	return &Service{
		api:         api,
		kv:          kv,
		alerts:      alerts,
		uploader:    opts.Uploader,
		projectID:   opts.ProjectID,
		clockOffset: opts.ClockOffset,
		log:         log,
		now:         time.Now,
		newID:       newMessageID,
	}
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RequesterID returns the external id of the signed-in user, preferring the
// cached profile over the API.
func (s *Service) RequesterID(ctx context.Context) (string, error) {
	const op = "chats.service.RequesterID"

	var cached userdomain.User
	found, err := s.readJSON(ctx, KeyUser, &cached)
	if err != nil {
		s.log.Warn("cached user is unreadable", slog.String("op", op), sl.Err(err))
	}
	if found && cached.ExternalID != "" {
		return cached.ExternalID, nil
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user == nil || user.ExternalID == "" {
		return "", fmt.Errorf("%s: %w", op, chats.ErrNoRequester)
	}

	return user.ExternalID, nil
}

// SignIn caches the profile used by RequesterID.
func (s *Service) SignIn(ctx context.Context, user userdomain.User) error {
	const op = "chats.service.SignIn"

	if user.ExternalID == "" {
		return fmt.Errorf("%s: %w", op, chats.ErrNoRequester)
	}

	if err := s.writeJSON(ctx, KeyUser, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetUserChats returns the chat list newest first. The remote list replaces
// the cached one; when the remote is unreachable the cached list is served.
func (s *Service) GetUserChats(ctx context.Context) ([]chats.ChatResource, error) {
	const op = "chats.service.GetUserChats"

	log := s.log.With(slog.String("op", op))

	online, err := s.fetchUserChats(ctx)
	if err == nil {
		if online == nil {
			log.Warn("no data received from server")
			return []chats.ChatResource{}, nil
		}

		chats.SortByLastActivity(online)

		if err := s.writeJSON(ctx, KeyUserChats, online); err != nil {
			log.Error("failed to cache chat list", sl.Err(err))
		}

		return online, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", op, ctxErr)
	}

	log.Warn("remote chat list unavailable, using cache", sl.Err(err))

	var cached []chats.ChatResource
	found, err := s.readJSON(ctx, KeyUserChats, &cached)
	if err != nil {
		log.Error("cached chat list is unreadable", sl.Err(err))
		return []chats.ChatResource{}, nil
	}
	if !found || cached == nil {
		return []chats.ChatResource{}, nil
	}

	chats.SortByLastActivity(cached)

	return cached, nil
}

func (s *Service) fetchUserChats(ctx context.Context) ([]chats.ChatResource, error) {
	requesterID, err := s.RequesterID(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Debug("requesting user chats",
		slog.String("requester_id", requesterID),
		slog.String("project_id", s.projectID),
	)

	return s.api.ListUserChats(ctx, requesterID, s.projectID)
}

// GetChatDetails returns the conversation with the user named displayName,
// oldest first, restricted to messages the requester sent or received.
// A cached conversation is served as is; otherwise it is fetched and cached.
func (s *Service) GetChatDetails(ctx context.Context, displayName string) ([]messages.Message, error) {
	const op = "chats.service.GetChatDetails"

	log := s.log.With(slog.String("op", op), slog.String("display_name", displayName))

	history, _, err := s.history(ctx, displayName)
	if err == nil {
		return history, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", op, ctxErr)
	}

	if errors.Is(err, chats.ErrNoRequester) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, chats.ErrInterlocutorNotFound) {
		log.Warn("interlocutor not found")
	} else {
		log.Error("failed to load chat details", sl.Err(err))
	}

	return []messages.Message{}, nil
}

// history is GetChatDetails without the fallbacks: every failure is reported.
func (s *Service) history(ctx context.Context, displayName string) ([]messages.Message, string, error) {
	interlocutorID, err := s.resolveInterlocutor(ctx, displayName)
	if err != nil {
		return nil, "", err
	}

	requesterID, err := s.RequesterID(ctx)
	if err != nil {
		return nil, interlocutorID, err
	}

	var cached []messages.Message
	found, err := s.readJSON(ctx, interlocutorID, &cached)
	if err != nil {
		s.log.Warn("cached conversation is unreadable, refetching",
			slog.String("interlocutor_id", interlocutorID),
			sl.Err(err),
		)
	}
	if found && err == nil {
		// cached timestamps are already shifted
		return messages.Conversation(cached, requesterID), interlocutorID, nil
	}

	details, err := s.api.GetChatDetails(ctx, chats.GetChatDetailsRequest{
		User:         requesterID,
		Interlocutor: interlocutorID,
		ProjectID:    s.projectID,
	})
	if err != nil {
		return nil, interlocutorID, err
	}
	if details == nil {
		s.log.Warn("no data received from server", slog.String("interlocutor_id", interlocutorID))
		return []messages.Message{}, interlocutorID, nil
	}

	shifted := messages.ShiftCreatedAt(details.Messages, s.clockOffset)

	if err := s.writeJSON(ctx, interlocutorID, shifted); err != nil {
		s.log.Error("failed to cache conversation",
			slog.String("interlocutor_id", interlocutorID),
			sl.Err(err),
		)
	}

	return messages.Conversation(shifted, requesterID), interlocutorID, nil
}

// resolveInterlocutor maps a display name to an external id using the first
// match of the API. Resolved names are remembered so they work offline.
func (s *Service) resolveInterlocutor(ctx context.Context, displayName string) (string, error) {
	const op = "chats.service.resolveInterlocutor"

	key := contactKeyPrefix + displayName

	users, err := s.api.FilterUsersByDisplayName(ctx, userdomain.FilterRequest{
		DisplayName: displayName,
		ProjectID:   s.projectID,
	})
	if err != nil {
		if id, found, cacheErr := s.kv.Get(ctx, key); cacheErr == nil && found && id != "" {
			s.log.Warn("user lookup failed, using cached contact",
				slog.String("op", op),
				slog.String("display_name", displayName),
				sl.Err(err),
			)
			return id, nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if len(users) == 0 || users[0].ExternalID == "" {
		return "", fmt.Errorf("%s: %q: %w", op, displayName, chats.ErrInterlocutorNotFound)
	}

	id := users[0].ExternalID

	if err := s.kv.Set(ctx, key, id); err != nil {
		s.log.Warn("failed to cache contact", slog.String("op", op), sl.Err(err))
	}

	return id, nil
}

// ReceiveMessage records an incoming message in the cached conversation with
// its sender and returns the refreshed conversation.
func (s *Service) ReceiveMessage(ctx context.Context, senderName string, msg messages.Message) ([]messages.Message, error) {
	const op = "chats.service.ReceiveMessage"

	log := s.log.With(slog.String("op", op), slog.String("sender", msg.Sender))

	log.Debug("message received", slog.String("message_id", msg.ID))

	incoming := messages.Message{
		ID:          msg.ID,
		Body:        msg.Body,
		Sender:      msg.Sender,
		Receiver:    msg.Receiver,
		Ack:         messages.AckReceived,
		CreatedAt:   s.now(),
		Attachments: msg.Attachments,
	}

	if err := s.appendToConversation(ctx, senderName, msg.Sender, incoming); err != nil {
		log.Error("failed to update chat", sl.Err(err))
		s.alerts.Alert(sendErrorTitle, updateFailedText+err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// the chat list keeps server timestamps, like the API returns it
	last := incoming
	last.CreatedAt = msg.CreatedAt
	if last.CreatedAt.IsZero() {
		last.CreatedAt = s.now().Add(-s.clockOffset)
	}
	s.touchChatList(ctx, msg.Sender, last)

	return s.GetChatDetails(ctx, senderName)
}

// SendMessage sends a text message to the user named receiverName. onPending,
// when set, receives the optimistic copy before the API call.
func (s *Service) SendMessage(ctx context.Context, body, receiverName string, onPending PendingFunc) ([]messages.Message, error) {
	const op = "chats.service.SendMessage"

	s.log.Debug("sending message", slog.String("op", op), slog.String("receiver", receiverName))

	interlocutorID, err := s.resolveInterlocutor(ctx, receiverName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requesterID, err := s.RequesterID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.emitPending(onPending, messages.Message{
		Body:     body,
		Sender:   requesterID,
		Receiver: interlocutorID,
	})

	return s.deliver(ctx, op, receiverName, interlocutorID, messages.SendMessageRequest{
		Body:       body,
		ProjectID:  s.projectID,
		ReceiverID: interlocutorID,
		SenderID:   requesterID,
	})
}

// FileInput describes a local file to attach.
type FileInput struct {
	URI      string
	Filename string
	MimeType string
	Filesize int64
	Path     string
}

// SendMessageWithAttachment sends a message with a single attachment and an
// empty body. The file is uploaded first when an uploader is configured.
func (s *Service) SendMessageWithAttachment(ctx context.Context, file FileInput, receiverName string, onPending PendingFunc) ([]messages.Message, error) {
	const op = "chats.service.SendMessageWithAttachment"

	log := s.log.With(slog.String("op", op), slog.String("receiver", receiverName))

	interlocutorID, err := s.resolveInterlocutor(ctx, receiverName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requesterID, err := s.RequesterID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	local := uploads.File{
		LocalPath:   file.URI,
		Filename:    file.Filename,
		ContentType: file.MimeType,
		Size:        file.Filesize,
	}

	if local.LocalPath != "" {
		described, err := uploads.Describe(local)
		if err != nil {
			log.Warn("failed to inspect attachment", sl.Err(err))
		} else {
			local = described
		}
	}

	path := file.Path
	if s.uploader != nil && local.LocalPath != "" {
		key, err := s.uploader.Upload(ctx, local)
		if err != nil {
			log.Error("failed to upload attachment", sl.Err(err))
			s.alerts.Alert(sendErrorTitle, sendFailedText+err.Error())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		path = key
	}

	now := s.now()
	attachment := messages.Attachment{
		Filename:  local.Filename,
		Mimetype:  local.ContentType,
		Filesize:  local.Size,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.emitPending(onPending, messages.Message{
		Body:        "file : " + attachment.Filename,
		Sender:      requesterID,
		Receiver:    interlocutorID,
		Attachments: []messages.Attachment{attachment},
	})

	return s.deliver(ctx, op, receiverName, interlocutorID, messages.SendMessageRequest{
		Body:        "",
		ProjectID:   s.projectID,
		ReceiverID:  interlocutorID,
		SenderID:    requesterID,
		Attachments: []messages.Attachment{attachment},
	})
}

func (s *Service) emitPending(onPending PendingFunc, msg messages.Message) {
	if onPending == nil {
		return
	}

	msg.ID = s.newID()
	msg.Ack = messages.AckSent
	msg.CreatedAt = s.now()

	onPending(msg)
}

// deliver sends req and merges the API answer into the cached conversation.
// Cache failures after a successful send are logged, not reported.
func (s *Service) deliver(ctx context.Context, op, receiverName, interlocutorID string, req messages.SendMessageRequest) ([]messages.Message, error) {
	log := s.log.With(slog.String("op", op), slog.String("interlocutor_id", interlocutorID))

	sent, err := s.api.SendMessage(ctx, req)
	if err != nil {
		log.Error("failed to send message", sl.Err(err))
		s.alerts.Alert(sendErrorTitle, sendFailedText+err.Error())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(sent) == 0 {
		return sent, nil
	}

	shifted := messages.ShiftCreatedAt(sent, s.clockOffset)

	if err := s.appendToConversation(ctx, receiverName, interlocutorID, shifted...); err != nil {
		log.Error("failed to cache sent message", sl.Err(err))
	}

	s.touchChatList(ctx, interlocutorID, sent[len(sent)-1])

	return sent, nil
}

// appendToConversation adds msgs to the conversation cached under key. When the
// conversation cannot be loaded the chat list is refreshed and the conversation
// restarts from msgs.
func (s *Service) appendToConversation(ctx context.Context, displayName, key string, msgs ...messages.Message) error {
	history, _, err := s.history(ctx, displayName)
	if err == nil {
		return s.writeJSON(ctx, key, messages.Merge(history, msgs...))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	s.log.Warn("conversation unavailable, starting a new one",
		slog.String("key", key),
		sl.Err(err),
	)

	if err := s.refreshUserChats(ctx); err != nil {
		return err
	}

	return s.writeJSON(ctx, key, msgs)
}

func (s *Service) refreshUserChats(ctx context.Context) error {
	online, err := s.fetchUserChats(ctx)
	if err != nil {
		return fmt.Errorf("refresh chat list: %w", err)
	}

	chats.SortByLastActivity(online)

	return s.writeJSON(ctx, KeyUserChats, online)
}

// touchChatList moves last into the cached chat list entry of interlocutorID
// when it is newer than what the entry holds. last carries a server timestamp.
func (s *Service) touchChatList(ctx context.Context, interlocutorID string, last messages.Message) {
	var list []chats.ChatResource
	found, err := s.readJSON(ctx, KeyUserChats, &list)
	if err != nil || !found {
		return
	}

	changed := false
	for i := range list {
		if list[i].Interlocutor.ExternalID != interlocutorID {
			continue
		}
		if list[i].LastMessage == nil || !last.CreatedAt.Before(list[i].LastMessage.CreatedAt) {
			m := last
			list[i].LastMessage = &m
			changed = true
		}
		break
	}

	if !changed {
		return
	}

	chats.SortByLastActivity(list)

	if err := s.writeJSON(ctx, KeyUserChats, list); err != nil {
		s.log.Warn("failed to update cached chat list", sl.Err(err))
	}
}

func (s *Service) readJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %q: %w", key, err)
	}
	if !found || raw == "" {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}

	return true, nil
}

func (s *Service) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}

	return nil
}
