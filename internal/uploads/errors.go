package uploads

import (
	"errors"
)

var (
	ErrContentTypeIsRequired = errors.New("contentType is required")
	ErrInvalidContentType    = errors.New("invalid contentType")
	ErrFileTooLarge          = errors.New("file is too large")
	ErrNotAFile              = errors.New("not a regular file")
)
