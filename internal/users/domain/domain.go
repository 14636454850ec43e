package userdomain

import "errors"

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
}

type FilterRequest struct {
	DisplayName string `json:"displayName"`
	ProjectID   string `json:"projectId"`
}
