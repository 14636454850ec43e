package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/PIO-VIA/Snapppy/internal/chats"
	"github.com/PIO-VIA/Snapppy/internal/config"
	mwLogger "github.com/PIO-VIA/Snapppy/internal/http-server/middleware/logger"
	"github.com/PIO-VIA/Snapppy/internal/lib/logger/sl"
	"github.com/PIO-VIA/Snapppy/internal/messages"
	"github.com/PIO-VIA/Snapppy/internal/tempuser"
	"github.com/PIO-VIA/Snapppy/internal/transport/httpapi"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
	"github.com/PIO-VIA/Snapppy/internal/ws"
	wsHandler "github.com/PIO-VIA/Snapppy/internal/ws/handler"
	"github.com/PIO-VIA/Snapppy/internal/ws/hub"
)

type Server struct {
	store  *Store
	hub    *hub.Hub
	log    *slog.Logger
	router chi.Router
}

func New(store *Store, h *hub.Hub, log *slog.Logger) *Server {
	s := &Server{store: store, hub: h, log: log}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)

	router.Group(func(r chi.Router) {
		r.Use(tempuser.WithUser(store.UserByToken))

		r.Get("/users/me", s.CurrentUser())
		r.Post("/users/filter", s.FilterUsers())
		r.Get("/projects/{projectId}/users/{userId}/chats", s.GetUserChats())
		r.Post("/chats/details", s.GetChatDetails())
		r.Post("/messages", s.SendMessage())
		r.Get("/ws", wsHandler.WSHandler(h, log))
	})

	s.router = router

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves the development API until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	const op = "devserver.Run"

	store := NewStore(cfg.API.ProjectID, cfg.DevServer.Users)

	h := hub.NewHub()
	go h.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.DevServer.Address,
		Handler:      New(store, h, log),
		ReadTimeout:  cfg.DevServer.Timeout,
		WriteTimeout: cfg.DevServer.Timeout,
		IdleTimeout:  cfg.DevServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting devserver", slog.String("address", cfg.DevServer.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s: %w", op, err)
	case <-ctx.Done():
	}

	log.Info("devserver stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DevServer.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}

	return nil
}

func (s *Server) logger(r *http.Request, op string) *slog.Logger {
	return s.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (s *Server) CurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, tempuser.User(r))
	}
}

func (s *Server) FilterUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "devserver.FilterUsers"

		log := s.logger(r, op)

		var req userdomain.FilterRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %v", httpapi.ErrBadRequest, err))
			return
		}

		users := s.store.FilterByDisplayName(req.DisplayName, req.ProjectID)
		if users == nil {
			users = []userdomain.User{}
		}

		render.JSON(w, r, users)
	}
}

func (s *Server) GetUserChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "devserver.GetUserChats"

		log := s.logger(r, op)

		userID := chi.URLParam(r, "userId")
		if userID != tempuser.User(r).ExternalID {
			log.Warn("chat list requested for another user", slog.String("user_id", userID))
			httpapi.WriteError(w, r, httpapi.ErrForbidden)
			return
		}

		list := s.store.Chats(userID)
		if list == nil {
			list = []chats.ChatResource{}
		}

		render.JSON(w, r, list)
	}
}

func (s *Server) GetChatDetails() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "devserver.GetChatDetails"

		log := s.logger(r, op)

		var req chats.GetChatDetailsRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %v", httpapi.ErrBadRequest, err))
			return
		}

		if req.User != tempuser.User(r).ExternalID {
			httpapi.WriteError(w, r, httpapi.ErrForbidden)
			return
		}

		render.JSON(w, r, chats.ChatDetails{
			Messages: s.store.Conversation(req.User, req.Interlocutor),
		})
	}
}

func (s *Server) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "devserver.SendMessage"

		log := s.logger(r, op)

		var req messages.SendMessageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: %v", httpapi.ErrBadRequest, err))
			return
		}

		sender := tempuser.User(r)
		if req.SenderID != sender.ExternalID {
			httpapi.WriteError(w, r, httpapi.ErrForbidden)
			return
		}

		msg, err := s.store.AddMessage(req)
		if err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, msg)

		payload, err := json.Marshal(ws.NewMessageEvent(sender.DisplayName, msg))
		if err != nil {
			log.Error("failed to marshal ws event", sl.Err(err))
			return
		}

		s.hub.SendToUser(msg.Receiver, payload)
	}
}
