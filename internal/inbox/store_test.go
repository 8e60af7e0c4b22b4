package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"souq-backend/internal/chat"
	"souq-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu sync.Mutex

	conversations []chat.ConversationView
	messages      map[uuid.UUID][]domain.Message

	sendErr    error
	fetchErr   error
	sendCalls  int
	readCalls  []uuid.UUID
	fetchCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{messages: make(map[uuid.UUID][]domain.Message)}
}

func (f *fakeClient) FetchConversations(ctx context.Context) ([]chat.ConversationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]chat.ConversationView, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeClient) FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages[conversationID]))
	copy(out, f.messages[conversationID])
	return out, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, attachments []string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	msg := domain.Message{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		Content:        content,
		Attachments:    domain.NewStringList(attachments),
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return &msg, nil
}

func (f *fakeClient) MarkAsRead(ctx context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, conversationID)
	return nil
}

func conv(id uuid.UUID, at time.Time, unread int, listingTitle, preview string) chat.ConversationView {
	return chat.ConversationView{
		Conversation: domain.Conversation{
			ConversationID:     id,
			LastMessageAt:      at,
			LastMessagePreview: preview,
		},
		ListingTitle: listingTitle,
		UnreadCount:  unread,
	}
}

func foreignMessage(convID uuid.UUID, content string, at time.Time) *domain.Message {
	return &domain.Message{
		MessageID:      uuid.New(),
		ConversationID: convID,
		SenderID:       uuid.New(),
		Content:        content,
		CreatedAt:      at,
	}
}

func TestFetchConversations_InstallsServerState(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x, y := uuid.New(), uuid.New()
	now := time.Now()
	client.conversations = []chat.ConversationView{
		conv(y, now.Add(-time.Hour), 1, "Kia Rio", "older"),
		conv(x, now, 0, "Honda Civic", "newer"),
	}

	store := NewStore(client, me)
	require.NoError(t, store.FetchConversations(context.Background()))

	got := store.Conversations()
	require.Len(t, got, 2)
	assert.Equal(t, x, got[0].ConversationID)
	assert.Equal(t, y, got[1].ConversationID)
	assert.Equal(t, map[uuid.UUID]int{x: 0, y: 1}, store.UnreadCounts())
}

// Two messages arrive over the change feed for one conversation while another
// already holds one unread from the initial fetch; the aggregate reflects both
// sources, and order follows the newest activity.
func TestHandleEvent_RealtimeArrivalsUpdateAggregates(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x, y := uuid.New(), uuid.New()
	now := time.Now()
	client.conversations = []chat.ConversationView{
		conv(x, now.Add(-2*time.Hour), 0, "Honda Civic", ""),
		conv(y, now.Add(-time.Hour), 1, "Kia Rio", "hello"),
	}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))

	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventInsert,
		ConversationID: x, Message: foreignMessage(x, "first", now),
	})
	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventInsert,
		ConversationID: x, Message: foreignMessage(x, "second", now.Add(time.Second)),
	})

	assert.Equal(t, map[uuid.UUID]int{x: 2, y: 1}, store.UnreadCounts())
	got := store.Conversations()
	assert.Equal(t, x, got[0].ConversationID)
	assert.Equal(t, "second", got[0].LastMessagePreview)
	assert.Empty(t, client.readCalls)
}

func TestHandleEvent_ActiveConversationAutoMarkedRead(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now().Add(-time.Hour), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))
	store.SetActive(x)

	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventInsert,
		ConversationID: x, Message: foreignMessage(x, "incoming", time.Now()),
	})

	assert.Equal(t, []uuid.UUID{x}, client.readCalls)
	assert.Equal(t, 0, store.UnreadCounts()[x])
	entries := store.Messages(x)
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].ReadAt)
}

// The store's own sends are already cached optimistically; the echo of the
// insert event must not duplicate them.
func TestHandleEvent_OwnInsertIgnored(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))

	_, err := store.SendMessage(ctx, x, "mine", nil)
	require.NoError(t, err)
	msgs := store.Messages(x)
	require.Len(t, msgs, 1)

	echo := msgs[0].Message
	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventInsert,
		ConversationID: x, Message: &echo,
	})
	assert.Len(t, store.Messages(x), 1)
}

// Sending into a conversation whose messages were never fetched must not
// plant a one-entry list that shadows the server's unread count.
func TestSendMessage_BeforeFetchKeepsServerUnread(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 2, "Honda Civic", "hello")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))

	_, err := store.SendMessage(ctx, x, "mine", nil)
	require.NoError(t, err)

	assert.Empty(t, store.Messages(x))
	assert.Equal(t, 2, store.UnreadCounts()[x])
}

// A message insert for a conversation the list has never seen reloads the
// authoritative list instead of waiting on the conversation's own event.
func TestHandleEvent_UnknownConversationReloadsList(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x, z := uuid.New(), uuid.New()
	now := time.Now()
	client.conversations = []chat.ConversationView{conv(x, now.Add(-time.Hour), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))

	client.mu.Lock()
	client.conversations = append(client.conversations, conv(z, now, 1, "Kia Rio", "is it available"))
	client.mu.Unlock()

	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventInsert,
		ConversationID: z, Message: foreignMessage(z, "is it available", now),
	})

	assert.Equal(t, 2, client.fetchCalls)
	got := store.Conversations()
	require.Len(t, got, 2)
	assert.Equal(t, z, got[0].ConversationID)
	assert.Equal(t, 1, store.UnreadCounts()[z])
}

func TestSendMessage_OptimisticThenConfirmed(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now().Add(-time.Hour), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))

	id, err := store.SendMessage(ctx, x, "hello", nil)
	require.NoError(t, err)

	entries := store.Messages(x)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].MessageID)
	assert.Equal(t, StatusSent, entries[0].Status)
	assert.Equal(t, "hello", entries[0].Content)
	// Successful send reconciles with an authoritative list reload.
	assert.GreaterOrEqual(t, client.fetchCalls, 2)
}

func TestSendMessage_FailureMarksEntryFailed(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("network down")
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))

	id, err := store.SendMessage(ctx, x, "lost", nil)
	require.Error(t, err)

	entries := store.Messages(x)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].MessageID)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Error(t, store.Err())
}

func TestResend_RetriesFailedEntry(t *testing.T) {
	client := newFakeClient()
	client.sendErr = errors.New("network down")
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))

	id, err := store.SendMessage(ctx, x, "retry me", nil)
	require.Error(t, err)

	client.mu.Lock()
	client.sendErr = nil
	client.mu.Unlock()
	require.NoError(t, store.Resend(ctx, x, id))

	entries := store.Messages(x)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSent, entries[0].Status)
	assert.Equal(t, "retry me", entries[0].Content)
	assert.Equal(t, 2, client.sendCalls)
}

func TestResend_IgnoresNonFailedEntries(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	id, err := store.SendMessage(ctx, x, "fine", nil)
	require.NoError(t, err)

	require.NoError(t, store.Resend(ctx, x, id))
	assert.Equal(t, 1, client.sendCalls)
}

func TestMarkAsRead_MirrorsLocally(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 2, "Honda Civic", "")}
	client.messages[x] = []domain.Message{
		*foreignMessage(x, "one", time.Now().Add(-2*time.Minute)),
		*foreignMessage(x, "two", time.Now().Add(-time.Minute)),
	}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))
	assert.Equal(t, 2, store.UnreadCounts()[x])

	require.NoError(t, store.MarkAsRead(ctx, x))
	assert.Equal(t, 0, store.UnreadCounts()[x])
	for _, e := range store.Messages(x) {
		assert.NotNil(t, e.ReadAt)
	}
}

// Read-receipt updates arriving over the feed patch cached copies in place.
func TestHandleEvent_UpdatePatchesMessage(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))
	id, err := store.SendMessage(ctx, x, "sent", nil)
	require.NoError(t, err)

	now := time.Now()
	updated := store.Messages(x)[0].Message
	updated.ReadAt = &now
	store.HandleEvent(ctx, chat.Event{
		Table: chat.TableMessages, Type: chat.EventUpdate,
		ConversationID: x, Message: &updated,
	})

	entries := store.Messages(x)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].MessageID)
	require.NotNil(t, entries[0].ReadAt)
}

// Overlapping fetches must both leave the store holding the authoritative
// list, whichever lands last.
func TestFetchConversations_ConcurrentCallsConverge(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x := uuid.New()
	client.conversations = []chat.ConversationView{conv(x, time.Now(), 0, "Honda Civic", "")}

	store := NewStore(client, me)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.FetchConversations(context.Background())
		}()
	}
	wg.Wait()

	got := store.Conversations()
	require.Len(t, got, 1)
	assert.Equal(t, x, got[0].ConversationID)
	loadingConvs, _ := store.Loading()
	assert.False(t, loadingConvs)
}

func TestLastMessages_PrefersCachedLists(t *testing.T) {
	client := newFakeClient()
	me := uuid.New()
	x, y := uuid.New(), uuid.New()
	now := time.Now()
	serverLast := foreignMessage(y, "from server", now.Add(-time.Hour))
	client.conversations = []chat.ConversationView{
		conv(x, now, 0, "Honda Civic", ""),
		{Conversation: domain.Conversation{ConversationID: y, LastMessageAt: now.Add(-time.Hour)}, LastMessage: serverLast},
	}
	client.messages[x] = []domain.Message{
		*foreignMessage(x, "older", now.Add(-2*time.Minute)),
		*foreignMessage(x, "latest", now),
	}

	store := NewStore(client, me)
	ctx := context.Background()
	require.NoError(t, store.FetchConversations(ctx))
	require.NoError(t, store.FetchMessages(ctx, x))

	last := store.LastMessages()
	assert.Equal(t, "latest", last[x].Content)
	assert.Equal(t, "from server", last[y].Content)
}
