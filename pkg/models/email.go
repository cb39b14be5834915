package models

import "time"

// EmailKind identifies the template used for an outgoing e-mail
type EmailKind string

// EmailKind constants
const (
	EmailVerification        EmailKind = "verification"
	EmailPasswordReset       EmailKind = "password_reset"
	EmailCommentNotification EmailKind = "comment_notification"
)

// EmailJob is an e-mail queued for delivery by the worker
type EmailJob struct {
	Kind      EmailKind `json:"kind"`
	To        string    `json:"to"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
