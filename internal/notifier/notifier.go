// Package notifier runs the unread-message email digest: a periodic sweep
// that finds messages nobody read within the grace window and sends one
// email per conversation and recipient. Messages are stamped notified_at so
// a message is never emailed about twice.
package notifier

import (
	"context"
	"time"

	"souq-backend/internal/domain"
	"souq-backend/internal/emails"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	Emails emails.Sender
	// After is how long a message may sit unread before it is emailed about.
	After time.Duration
	// Every is the sweep interval.
	Every time.Duration
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	every := s.Every
	if every <= 0 {
		every = 10 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	log.Info().Dur("every", every).Dur("after", s.After).Msg("unread digest sweep started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("unread digest sweep stopped")
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx, time.Now()); err != nil {
				log.Error().Err(err).Msg("unread digest sweep failed")
			} else if n > 0 {
				log.Info().Int("digests", n).Msg("unread digest sweep sent")
			}
		}
	}
}

// digestGroup collects one conversation's stale unread messages for one
// recipient.
type digestGroup struct {
	conversation domain.Conversation
	recipientID  uuid.UUID
	senderID     uuid.UUID
	messageIDs   []uuid.UUID
	latest       domain.Message
}

// Sweep sends digests for messages that have been unread and un-notified for
// longer than the grace window. Returns the number of digests sent.
// notified_at is stamped only after a successful send, so a failed email is
// retried on the next sweep.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.After)

	var stale []domain.Message
	err := s.DB.WithContext(ctx).
		Where("read_at IS NULL AND notified_at IS NULL AND is_system_message = ? AND created_at < ?", false, cutoff).
		Order("created_at ASC").
		Find(&stale).Error
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	groups, err := s.groupByRecipient(ctx, stale)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, g := range groups {
		if err := s.sendDigest(ctx, g); err != nil {
			log.Error().
				Str("conversation_id", g.conversation.ConversationID.String()).
				Str("recipient_id", g.recipientID.String()).
				Err(err).
				Msg("unread digest send failed")
			continue
		}
		err := s.DB.WithContext(ctx).
			Model(&domain.Message{}).
			Where("message_id IN ?", g.messageIDs).
			UpdateColumn("notified_at", now).Error
		if err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// groupKey splits a conversation's stale messages per recipient: when both
// parties let messages sit unread, each gets their own digest counting only
// the other party's messages.
type groupKey struct {
	conversationID uuid.UUID
	recipientID    uuid.UUID
}

func (s *Service) groupByRecipient(ctx context.Context, stale []domain.Message) ([]digestGroup, error) {
	convs := make(map[uuid.UUID]domain.Conversation)
	groups := make(map[groupKey]*digestGroup)
	order := make([]groupKey, 0)

	for _, msg := range stale {
		conv, ok := convs[msg.ConversationID]
		if !ok {
			if err := s.DB.WithContext(ctx).First(&conv, "conversation_id = ?", msg.ConversationID).Error; err != nil {
				return nil, err
			}
			convs[msg.ConversationID] = conv
		}
		key := groupKey{conversationID: msg.ConversationID, recipientID: conv.OtherParty(msg.SenderID)}
		g, ok := groups[key]
		if !ok {
			g = &digestGroup{
				conversation: conv,
				recipientID:  key.recipientID,
				senderID:     msg.SenderID,
			}
			groups[key] = g
			order = append(order, key)
		}
		g.messageIDs = append(g.messageIDs, msg.MessageID)
		g.latest = msg
	}

	out := make([]digestGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out, nil
}

func (s *Service) sendDigest(ctx context.Context, g digestGroup) error {
	var recipient, sender domain.User
	if err := s.DB.WithContext(ctx).First(&recipient, "user_id = ?", g.recipientID).Error; err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).First(&sender, "user_id = ?", g.senderID).Error; err != nil {
		return err
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).First(&listing, "listing_id = ?", g.conversation.ListingID).Error; err != nil {
		return err
	}
	return s.Emails.SendUnreadDigest(ctx, emails.UnreadDigest{
		ToEmail:      recipient.Email,
		ToName:       recipient.Fullname,
		SenderName:   sender.Fullname,
		ListingTitle: listing.Title,
		Count:        len(g.messageIDs),
		Preview:      g.latest.Content,
	})
}
