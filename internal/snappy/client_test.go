package snappy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/config"
	"github.com/PIO-VIA/Snapppy/internal/devserver"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/handlers/slogdiscard"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
	"github.com/PIO-VIA/Snapppy/internal/ws/hub"
)

const project = "proj"

func newDevServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := devserver.NewStore(project, []config.SeedUser{
		{ExternalID: "u-alice", DisplayName: "Alice", Token: "alice-token"},
		{ExternalID: "u-bob", DisplayName: "Bob", Token: "bob-token"},
	})

	h := hub.NewHub()
	go h.Run(ctx)

	srv := httptest.NewServer(devserver.New(store, h, slogdiscard.NewDiscardLogger()))
	t.Cleanup(srv.Close)

	return srv
}

func newClient(baseURL, token string) *Client {
	c := New(baseURL, token, 5*time.Second, slogdiscard.NewDiscardLogger())
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestClient_RoundTripAgainstDevServer(t *testing.T) {
	srv := newDevServer(t)
	ctx := context.Background()

	alice := newClient(srv.URL, "alice-token")
	bob := newClient(srv.URL, "bob-token")

	me, err := alice.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if me.ExternalID != "u-alice" {
		t.Fatalf("expected u-alice, got %+v", me)
	}

	users, err := alice.FilterUsersByDisplayName(ctx, userdomain.FilterRequest{DisplayName: "bob", ProjectID: project})
	if err != nil {
		t.Fatalf("filter users: %v", err)
	}
	if len(users) != 1 || users[0].ExternalID != "u-bob" {
		t.Fatalf("expected bob, got %+v", users)
	}

	sent, err := alice.SendMessage(ctx, messages.SendMessageRequest{
		Body:       "hello bob",
		ProjectID:  project,
		ReceiverID: "u-bob",
		SenderID:   "u-alice",
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if len(sent) != 1 || sent[0].Body != "hello bob" || sent[0].ID == "" || sent[0].Ack != messages.AckSent {
		t.Fatalf("unexpected send answer: %+v", sent)
	}

	list, err := bob.ListUserChats(ctx, "u-bob", project)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(list) != 1 || list[0].Interlocutor.DisplayName != "Alice" || list[0].LastMessage == nil || list[0].LastMessage.ID != sent[0].ID {
		t.Fatalf("unexpected chat list: %+v", list)
	}

	details, err := bob.GetChatDetails(ctx, chats.GetChatDetailsRequest{User: "u-bob", Interlocutor: "u-alice", ProjectID: project})
	if err != nil {
		t.Fatalf("chat details: %v", err)
	}
	if details == nil || len(details.Messages) != 1 {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := newDevServer(t)
	ctx := context.Background()

	t.Run("bad token", func(t *testing.T) {
		_, err := newClient(srv.URL, "nope").CurrentUser(ctx)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("other user's chats", func(t *testing.T) {
		_, err := newClient(srv.URL, "alice-token").ListUserChats(ctx, "u-bob", project)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %v", err)
		}
	})

	t.Run("unknown receiver", func(t *testing.T) {
		_, err := newClient(srv.URL, "alice-token").SendMessage(ctx, messages.SendMessageRequest{
			Body: "hi", ReceiverID: "u-ghost", SenderID: "u-alice", ProjectID: project,
		})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "user_not_found" {
			t.Fatalf("expected 404 user_not_found, got %v", err)
		}
	})

	t.Run("invalid request never leaves the client", func(t *testing.T) {
		_, err := newClient(srv.URL, "alice-token").SendMessage(ctx, messages.SendMessageRequest{
			ReceiverID: "u-bob", SenderID: "u-alice",
		})
		if !errors.Is(err, messages.ErrTextOrAttachmentsIsRequired) {
			t.Fatalf("expected ErrTextOrAttachmentsIsRequired, got %v", err)
		}
	})
}

func TestClient_RetriesReadsOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"externalId":"u-bob","displayName":"Bob"}]`))
	}))
	defer srv.Close()

	users, err := newClient(srv.URL, "").FilterUsersByDisplayName(context.Background(), userdomain.FilterRequest{DisplayName: "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 || calls.Load() != 3 {
		t.Fatalf("expected success on third call, got %d users after %d calls", len(users), calls.Load())
	}
}

func TestClient_DoesNotRetryUndecodableAnswers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"externalId":`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").CurrentUser(context.Background())
	if !errors.Is(err, ErrDecodeResponse) {
		t.Fatalf("expected ErrDecodeResponse, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_DoesNotRetrySends(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").SendMessage(context.Background(), messages.SendMessageRequest{
		Body: "hi", ReceiverID: "u-bob", SenderID: "u-alice",
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestDecodeMessages(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantIDs []string
	}{
		{name: "single object", raw: `{"id":"1","body":"a"}`, wantIDs: []string{"1"}},
		{name: "list", raw: `[{"id":"1"},{"id":"2"}]`, wantIDs: []string{"1", "2"}},
		{name: "null", raw: `null`},
		{name: "empty", raw: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMessages([]byte(tt.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %d messages, got %d", len(tt.wantIDs), len(got))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Fatalf("message %d: expected id %q, got %q", i, id, got[i].ID)
				}
			}
		})
	}
}
