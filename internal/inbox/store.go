// Package inbox keeps a process-local cache of one user's conversations and
// messages, synchronized with the chat service through authoritative fetches
// and the realtime change feed. It owns the derived state the inbox screen
// renders: unread counts, last-message previews and recency ordering.
package inbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"souq-backend/internal/chat"
	"souq-backend/internal/domain"

	"github.com/google/uuid"
)

// MessageStatus tracks an optimistic entry's delivery state. A failed send
// stays in the cache marked failed rather than silently posing as delivered.
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Entry is one cached message plus its local delivery state.
type Entry struct {
	domain.Message
	Status MessageStatus `json:"status"`
}

// Client is the server surface the store synchronizes against.
type Client interface {
	FetchConversations(ctx context.Context) ([]chat.ConversationView, error)
	FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, content string, attachments []string) (*domain.Message, error)
	MarkAsRead(ctx context.Context, conversationID uuid.UUID) error
}

// Store is safe for concurrent use; fetches may overlap (the UI can trigger a
// second reload before the first resolves) and all interleavings converge on
// the authoritative server state.
type Store struct {
	client Client
	me     uuid.UUID

	mu            sync.RWMutex
	conversations []chat.ConversationView
	// messages holds full lists only for conversations that were fetched;
	// realtime arrivals and optimistic sends append to existing lists, never
	// create partial ones, so a present key always means a complete list.
	messages     map[uuid.UUID][]Entry
	serverUnread map[uuid.UUID]int
	activeID     uuid.UUID

	loadingConversations bool
	loadingMessages      bool
	lastErr              error
}

func NewStore(client Client, me uuid.UUID) *Store {
	return &Store{
		client:       client,
		me:           me,
		messages:     make(map[uuid.UUID][]Entry),
		serverUnread: make(map[uuid.UUID]int),
	}
}

// SetActive marks the conversation currently open in the UI; realtime inserts
// for it are auto-marked read.
func (s *Store) SetActive(conversationID uuid.UUID) {
	s.mu.Lock()
	s.activeID = conversationID
	s.mu.Unlock()
}

// FetchConversations reloads the full conversation list from the server.
// Safe to call concurrently: whichever call lands last installs a complete
// authoritative list, so overlapping fetches converge.
func (s *Store) FetchConversations(ctx context.Context) error {
	s.mu.Lock()
	s.loadingConversations = true
	s.mu.Unlock()

	views, err := s.client.FetchConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingConversations = false
	if err != nil {
		s.lastErr = err
		return err
	}
	s.conversations = views
	for _, v := range views {
		s.serverUnread[v.ConversationID] = v.UnreadCount
	}
	s.sortLocked()
	return nil
}

// FetchMessages reloads one conversation's full message list.
func (s *Store) FetchMessages(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	s.loadingMessages = true
	s.mu.Unlock()

	msgs, err := s.client.FetchMessages(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingMessages = false
	if err != nil {
		s.lastErr = err
		return err
	}
	entries := make([]Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = Entry{Message: m, Status: StatusSent}
	}
	s.messages[conversationID] = entries
	return nil
}

// SendMessage appends an optimistic entry immediately, then confirms it
// against the server. On success the entry is replaced by the server row and
// the conversation list is reconciled with an authoritative reload; on
// failure the entry is marked failed and kept for Resend.
func (s *Store) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, attachments []string) (uuid.UUID, error) {
	optimistic := Entry{
		Message: domain.Message{
			MessageID:      uuid.New(),
			ConversationID: conversationID,
			SenderID:       s.me,
			Content:        content,
			Attachments:    domain.NewStringList(attachments),
			CreatedAt:      time.Now(),
		},
		Status: StatusSending,
	}

	s.mu.Lock()
	// Only fetched lists take the optimistic entry; creating the key for an
	// unfetched conversation would make a partial list pose as complete and
	// shadow the server's unread count.
	if entries, ok := s.messages[conversationID]; ok {
		s.messages[conversationID] = append(entries, optimistic)
	}
	s.bumpConversationLocked(conversationID, optimistic.CreatedAt, content)
	s.mu.Unlock()

	confirmed, err := s.client.SendMessage(ctx, conversationID, content, attachments)

	s.mu.Lock()
	if err != nil {
		s.setEntryLocked(conversationID, optimistic.MessageID, func(e *Entry) {
			e.Status = StatusFailed
		})
		s.lastErr = err
		s.mu.Unlock()
		return optimistic.MessageID, err
	}
	s.setEntryLocked(conversationID, optimistic.MessageID, func(e *Entry) {
		e.Message = *confirmed
		e.Status = StatusSent
	})
	s.bumpConversationLocked(conversationID, confirmed.CreatedAt, content)
	s.mu.Unlock()

	// Reconcile ordering and counters with server truth.
	return confirmed.MessageID, s.FetchConversations(ctx)
}

// Resend retries a failed optimistic entry.
func (s *Store) Resend(ctx context.Context, conversationID, messageID uuid.UUID) error {
	s.mu.Lock()
	var content string
	var attachments []string
	found := false
	for _, e := range s.messages[conversationID] {
		if e.MessageID == messageID && e.Status == StatusFailed {
			content = e.Content
			attachments = e.Attachments.Items()
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return nil
	}
	s.setEntryLocked(conversationID, messageID, func(e *Entry) { e.Status = StatusSending })
	s.mu.Unlock()

	confirmed, err := s.client.SendMessage(ctx, conversationID, content, attachments)

	s.mu.Lock()
	if err != nil {
		s.setEntryLocked(conversationID, messageID, func(e *Entry) { e.Status = StatusFailed })
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.setEntryLocked(conversationID, messageID, func(e *Entry) {
		e.Message = *confirmed
		e.Status = StatusSent
	})
	s.bumpConversationLocked(conversationID, confirmed.CreatedAt, content)
	s.mu.Unlock()
	return s.FetchConversations(ctx)
}

// MarkAsRead stamps the server first, then mirrors the stamps locally.
// Calling it twice is a no-op the second time.
func (s *Store) MarkAsRead(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.client.MarkAsRead(ctx, conversationID); err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	now := time.Now()
	s.mu.Lock()
	entries := s.messages[conversationID]
	for i := range entries {
		if entries[i].UnreadBy(s.me) {
			t := now
			entries[i].ReadAt = &t
		}
	}
	s.serverUnread[conversationID] = 0
	s.mu.Unlock()
	return nil
}

// HandleEvent ingests one realtime change notification.
func (s *Store) HandleEvent(ctx context.Context, ev chat.Event) {
	switch {
	case ev.Table == chat.TableMessages && ev.Type == chat.EventInsert:
		s.handleMessageInsert(ctx, ev)
	case ev.Table == chat.TableMessages && ev.Type == chat.EventUpdate:
		s.handleMessageUpdate(ev)
	case ev.Table == chat.TableConversations:
		s.handleConversationEvent(ev)
	}
}

func (s *Store) handleMessageInsert(ctx context.Context, ev chat.Event) {
	if ev.Message == nil {
		return
	}
	msg := *ev.Message
	if msg.SenderID == s.me {
		// Own sends are already in the cache optimistically.
		return
	}

	s.mu.Lock()
	if entries, ok := s.messages[msg.ConversationID]; ok {
		if !containsMessage(entries, msg.MessageID) {
			s.messages[msg.ConversationID] = append(entries, Entry{Message: msg, Status: StatusSent})
		}
	} else {
		// No full list cached for this conversation; track the unread
		// arrival so the aggregate stays right without a partial list.
		s.serverUnread[msg.ConversationID]++
	}
	s.bumpConversationLocked(msg.ConversationID, msg.CreatedAt, msg.Content)
	known := false
	for i := range s.conversations {
		if s.conversations[i].ConversationID == msg.ConversationID {
			known = true
			break
		}
	}
	active := s.activeID == msg.ConversationID
	s.mu.Unlock()

	if !known {
		// First sign of a conversation the list has never seen; reload the
		// list so it shows up even if its own change event never arrives.
		_ = s.FetchConversations(ctx)
	}
	if active {
		_ = s.MarkAsRead(ctx, msg.ConversationID)
	}
}

func (s *Store) handleMessageUpdate(ev chat.Event) {
	if ev.Message == nil {
		return
	}
	msg := *ev.Message
	s.mu.Lock()
	s.setEntryLocked(msg.ConversationID, msg.MessageID, func(e *Entry) {
		e.Message = msg
	})
	s.mu.Unlock()
}

func (s *Store) handleConversationEvent(ev chat.Event) {
	if ev.Conversation == nil {
		return
	}
	conv := *ev.Conversation
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ConversationID == conv.ConversationID {
			s.conversations[i].Conversation = conv
			s.sortLocked()
			return
		}
	}
	s.conversations = append(s.conversations, chat.ConversationView{Conversation: conv})
	s.sortLocked()
}

// Conversations returns the cached list, always freshly sorted descending by
// last_message_at — insertion order is never trusted.
func (s *Store) Conversations() []chat.ConversationView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.ConversationView, len(s.conversations))
	copy(out, s.conversations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// Messages returns the cached entries for one conversation.
func (s *Store) Messages(conversationID uuid.UUID) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.messages[conversationID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// UnreadCounts rebuilds the per-conversation unread aggregate: a full rescan
// of each cached message list, falling back to the server-reported count for
// conversations whose messages were never fetched.
func (s *Store) UnreadCounts() map[uuid.UUID]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]int, len(s.conversations))
	for _, conv := range s.conversations {
		id := conv.ConversationID
		if entries, ok := s.messages[id]; ok {
			n := 0
			for _, e := range entries {
				if e.UnreadBy(s.me) {
					n++
				}
			}
			out[id] = n
		} else {
			out[id] = s.serverUnread[id]
		}
	}
	return out
}

// LastMessages rebuilds the per-conversation latest message by re-scanning
// the cached lists for the max created_at.
func (s *Store) LastMessages() map[uuid.UUID]domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Message, len(s.conversations))
	for _, conv := range s.conversations {
		id := conv.ConversationID
		if entries, ok := s.messages[id]; ok && len(entries) > 0 {
			latest := entries[0]
			for _, e := range entries[1:] {
				if e.CreatedAt.After(latest.CreatedAt) {
					latest = e
				}
			}
			out[id] = latest.Message
		} else if conv.LastMessage != nil {
			out[id] = *conv.LastMessage
		}
	}
	return out
}

// Err returns the last recorded error (fetch or send failure), surfaced
// non-modally by the UI.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Loading reports the in-flight fetch flags.
func (s *Store) Loading() (conversations, messages bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingConversations, s.loadingMessages
}

func (s *Store) bumpConversationLocked(conversationID uuid.UUID, at time.Time, previewText string) {
	for i := range s.conversations {
		if s.conversations[i].ConversationID == conversationID {
			if at.After(s.conversations[i].LastMessageAt) {
				s.conversations[i].LastMessageAt = at
				s.conversations[i].LastMessagePreview = previewText
			}
			break
		}
	}
	s.sortLocked()
}

func (s *Store) setEntryLocked(conversationID, messageID uuid.UUID, fn func(*Entry)) {
	entries := s.messages[conversationID]
	for i := range entries {
		if entries[i].MessageID == messageID {
			fn(&entries[i])
			return
		}
	}
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageAt.After(s.conversations[j].LastMessageAt)
	})
}

func containsMessage(entries []Entry, id uuid.UUID) bool {
	for _, e := range entries {
		if e.MessageID == id {
			return true
		}
	}
	return false
}
