package inbox

import (
	"strings"

	"souq-backend/internal/chat"

	"github.com/google/uuid"
)

// Filter narrows a conversation list by free-text query and an unread-only
// toggle. The query matches case-insensitively against the counterpart names,
// the listing title and the last-message preview. Order is preserved.
type Filter struct {
	Query      string
	UnreadOnly bool
}

// Apply returns the subset of views matching the filter, using unread to
// resolve the unread-only toggle.
func (f Filter) Apply(views []chat.ConversationView, unread map[uuid.UUID]int) []chat.ConversationView {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]chat.ConversationView, 0, len(views))
	for _, v := range views {
		if f.UnreadOnly && unread[v.ConversationID] == 0 {
			continue
		}
		if q != "" && !matches(v, q) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matches(v chat.ConversationView, q string) bool {
	for _, field := range []string{v.BuyerName, v.SellerName, v.ListingTitle, v.LastMessagePreview} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
