package httpapi

import (
	"errors"
	"net/http"

	"github.com/PIO-VIA/Snapppy/internal/messages"
	userdomain "github.com/PIO-VIA/Snapppy/internal/users/domain"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrForbidden  = errors.New("forbidden")
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, userdomain.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", err.Error()

	case errors.Is(err, messages.ErrTextOrAttachmentsIsRequired):
		return http.StatusBadRequest, "text_or_attachments_required", err.Error()

	case errors.Is(err, messages.ErrReceiverIsRequired):
		return http.StatusBadRequest, "receiver_required", err.Error()

	case errors.Is(err, messages.ErrSenderIsRequired):
		return http.StatusBadRequest, "sender_required", err.Error()

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden", err.Error()

	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
