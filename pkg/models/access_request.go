package models

import "time"

// RequestResponse is an owner's answer to an access request.
type RequestResponse string

const (
	ResponseAccept RequestResponse = "accept"
	ResponseReject RequestResponse = "reject"
)

// AccessRequest is a non-member's request to join a project
type AccessRequest struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PendingRequest is an access request joined with the requester's identity record.
type PendingRequest struct {
	AccessRequest
	User *User `json:"user,omitempty"`
}
