package uploads

import (
	"github.com/google/uuid"
)

// GenerateKey returns a fresh object key whose extension follows the content type.
func GenerateKey(contentType string) (string, error) {
	ext, ok := ExtForMime(contentType)
	if !ok {
		return "", ErrInvalidContentType
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return "uploads/" + u.String() + ext, nil
}
