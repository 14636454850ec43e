package chats

import (
	"errors"
)

var (
	ErrInterlocutorNotFound = errors.New("interlocutor not found")
	ErrNoRequester          = errors.New("requester id is unknown")
)
