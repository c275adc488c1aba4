package slack

import "fmt"

// AuthError indicates an invalid or revoked token. Fatal to a sync: the
// pipeline aborts before any write.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("slack: authentication failed: %s", e.Reason)
}

// ConversationAccessError indicates one conversation could not be fetched
// (revoked access, archived, deleted). The pipeline logs it, skips the
// conversation, and continues.
type ConversationAccessError struct {
	ConversationID string
	Err            error
}

func (e *ConversationAccessError) Error() string {
	return fmt.Sprintf("slack: conversation %s inaccessible: %v", e.ConversationID, e.Err)
}

func (e *ConversationAccessError) Unwrap() error {
	return e.Err
}
