package messages

import (
	"errors"
)

var (
	ErrTextOrAttachmentsIsRequired = errors.New("text or attachments is required")
	ErrReceiverIsRequired          = errors.New("receiver is required")
	ErrSenderIsRequired            = errors.New("sender is required")
)
