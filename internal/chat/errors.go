package chat

import "errors"

var (
	ErrConversationNotFound = errors.New("Conversation not found")
	ErrNotParticipant       = errors.New("User is not a participant in this conversation")
	ErrListingNotFound      = errors.New("Listing not found")
	ErrSelfConversation     = errors.New("Cannot start a conversation on your own listing")
	ErrEmptyMessage         = errors.New("Message content is required")
)
