package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// EditWindow is how long after sending the sender may still edit text.
// The boundary is exclusive: an edit at exactly EditWindow fails.
const EditWindow = 15 * time.Minute

// TimestampGapMillis is the gap after which a rendered message gets its
// own timestamp marker.
const TimestampGapMillis = int64(60 * 60 * 1000)

// replyFallback is rendered when a reply referent cannot be resolved.
const replyFallback = "Original message unavailable"

// DeliveryObserver is notified about delivered sends so a delivery
// mechanism (simulated or real) can drive status promotions. Cancel stops
// any pending promotion for a conversation, e.g. on view teardown.
type DeliveryObserver interface {
	MessageSent(conv Conversation, msg models.Message)
	Cancel(conversationKey string)
}

// Engine is the message state machine shared by direct and group chats.
// It authorizes against the block and group registries and persists
// through the conversation store; callers render only what it returns.
type Engine struct {
	store    repositories.ConversationStore
	blocks   repositories.BlockRegistry
	groups   repositories.GroupRegistry
	unread   repositories.UnreadCounters
	delivery DeliveryObserver

	now   func() time.Time
	newID func() string
}

// New constructs an Engine. delivery may be nil when no status promotion
// is wanted (tests, batch tooling).
func New(store repositories.ConversationStore, blocks repositories.BlockRegistry, groups repositories.GroupRegistry, unread repositories.UnreadCounters, delivery DeliveryObserver) *Engine {
	return &Engine{
		store:    store,
		blocks:   blocks,
		groups:   groups,
		unread:   unread,
		delivery: delivery,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Send appends a new message. For direct chats a sender who has blocked
// the peer gets status "not sent" and no delivery; everyone else gets
// "sent" and a DeliveryObserver notification. Timestamps are clamped so
// the stored order stays non-decreasing.
func (e *Engine) Send(ctx context.Context, conv Conversation, senderID, senderName string, body models.Body, replyTo string) (models.Message, error) {
	body.Text = strings.TrimSpace(body.Text)
	if body.Kind() == "" {
		return models.Message{}, ErrInvalidBody
	}
	if err := e.authorize(ctx, conv, senderID); err != nil {
		return models.Message{}, err
	}

	status := models.StatusSent
	if conv.Direct {
		blocked, err := e.blocks.IsBlocked(ctx, senderID, conv.Peer(senderID))
		if err != nil {
			return models.Message{}, err
		}
		if blocked {
			status = models.StatusNotSent
		}
	}

	msg := models.Message{
		ID:             e.newID(),
		Text:           body.Text,
		ImageURI:       body.ImageURI,
		AudioURI:       body.AudioURI,
		DurationMillis: body.DurationMillis,
		Sender:         senderID,
		Timestamp:      e.now().UnixMilli(),
		Status:         status,
		ReplyTo:        replyTo,
	}
	if !conv.Direct {
		msg.SenderName = senderName
	}

	_, err := e.store.Update(ctx, conv.Key, func(msgs []models.Message) ([]models.Message, error) {
		if replyTo != "" && findMessage(msgs, replyTo) == nil {
			return nil, ErrMessageNotFound
		}
		if n := len(msgs); n > 0 && msgs[n-1].Timestamp > msg.Timestamp {
			msg.Timestamp = msgs[n-1].Timestamp
		}
		return append(msgs, msg), nil
	})
	if err != nil {
		return models.Message{}, err
	}

	observability.IncMessageSent(kindOf(conv), status)

	if conv.Direct && status == models.StatusSent {
		if e.delivery != nil {
			e.delivery.MessageSent(conv, msg)
		}
		// The counter is best-effort bookkeeping; the message itself is
		// already durable.
		if err := e.unread.Increment(ctx, conv.Peer(senderID), senderID); err != nil {
			observability.IncUnreadError()
			log.Printf("unread increment failed: %v", err)
		}
	}
	return msg, nil
}

// Edit replaces the text of the sender's own message inside the edit
// window. Everything else is ErrNotEditable.
func (e *Engine) Edit(ctx context.Context, conv Conversation, requesterID, messageID, newText string) (models.Message, error) {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return models.Message{}, ErrInvalidBody
	}
	if err := e.authorize(ctx, conv, requesterID); err != nil {
		return models.Message{}, err
	}

	var edited models.Message
	_, err := e.store.Update(ctx, conv.Key, func(msgs []models.Message) ([]models.Message, error) {
		msg := findMessage(msgs, messageID)
		if msg == nil {
			return nil, ErrMessageNotFound
		}
		if msg.Sender != requesterID || msg.DeletedForEveryone || !msg.HasText() {
			return nil, ErrNotEditable
		}
		if e.now().UnixMilli()-msg.Timestamp >= EditWindow.Milliseconds() {
			return nil, ErrNotEditable
		}
		msg.Text = newText
		msg.Edited = true
		edited = *msg
		return msgs, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return edited, nil
}

// DeleteForMe hides the message from the viewer only. Idempotent.
func (e *Engine) DeleteForMe(ctx context.Context, conv Conversation, viewerID, messageID string) error {
	if err := e.authorize(ctx, conv, viewerID); err != nil {
		return err
	}
	_, err := e.store.Update(ctx, conv.Key, func(msgs []models.Message) ([]models.Message, error) {
		msg := findMessage(msgs, messageID)
		if msg == nil {
			return nil, ErrMessageNotFound
		}
		if !msg.DeletedForUser(viewerID) {
			msg.DeletedFor = append(msg.DeletedFor, viewerID)
		}
		return msgs, nil
	})
	return err
}

// DeleteForEveryone irreversibly replaces the body with a placeholder.
// Sender-only; calling it twice yields the same state.
func (e *Engine) DeleteForEveryone(ctx context.Context, conv Conversation, requesterID, messageID string) (models.Message, error) {
	if err := e.authorize(ctx, conv, requesterID); err != nil {
		return models.Message{}, err
	}

	var deleted models.Message
	_, err := e.store.Update(ctx, conv.Key, func(msgs []models.Message) ([]models.Message, error) {
		msg := findMessage(msgs, messageID)
		if msg == nil {
			return nil, ErrMessageNotFound
		}
		if msg.Sender != requesterID {
			return nil, repositories.ErrUnauthorized
		}
		if !msg.DeletedForEveryone {
			msg.Text = models.DeletedPlaceholder
			msg.ImageURI = ""
			msg.AudioURI = ""
			msg.DurationMillis = 0
			msg.DeletedForEveryone = true
			msg.Edited = false
		}
		deleted = *msg
		return msgs, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return deleted, nil
}

// Reply selects an existing message as pending reply context. Pure read;
// nothing is written until the next Send carries the reference.
func (e *Engine) Reply(ctx context.Context, conv Conversation, viewerID, messageID string) (models.Message, error) {
	if err := e.authorize(ctx, conv, viewerID); err != nil {
		return models.Message{}, err
	}
	msgs, err := e.store.Load(ctx, conv.Key)
	if err != nil {
		return models.Message{}, err
	}
	msg := findMessage(msgs, messageID)
	if msg == nil || msg.DeletedForUser(viewerID) {
		return models.Message{}, ErrMessageNotFound
	}
	return *msg, nil
}

// RenderedMessage is a message prepared for one viewer: visibility filter
// applied, direction resolved, timestamp markers and reply previews
// computed. None of the extra fields are stored.
type RenderedMessage struct {
	models.Message
	Direction     string `json:"direction,omitempty"`
	ShowTimestamp bool   `json:"showTimestamp"`
	ReplyPreview  string `json:"replyPreview,omitempty"`
}

// Messages returns the viewer's rendered conversation.
func (e *Engine) Messages(ctx context.Context, conv Conversation, viewerID string) ([]RenderedMessage, error) {
	if err := e.authorize(ctx, conv, viewerID); err != nil {
		return nil, err
	}
	msgs, err := e.store.Load(ctx, conv.Key)
	if err != nil {
		return nil, err
	}

	rendered := make([]RenderedMessage, 0, len(msgs))
	var prevTimestamp int64
	for _, m := range msgs {
		if m.DeletedForUser(viewerID) {
			continue
		}
		rm := RenderedMessage{Message: m}
		if conv.Direct {
			rm.Direction = "them"
			if m.Sender == viewerID {
				rm.Direction = "me"
			}
		}
		rm.ShowTimestamp = len(rendered) == 0 || m.Timestamp-prevTimestamp > TimestampGapMillis
		if m.ReplyTo != "" && !m.DeletedForEveryone {
			rm.ReplyPreview = replyPreview(msgs, m.ReplyTo)
		}
		prevTimestamp = m.Timestamp
		rendered = append(rendered, rm)
	}
	return rendered, nil
}

// PromoteTail advances the newest message of a direct conversation from
// sent to seen, but only if it is still the message the caller saw. Used
// by delivery observers; "not sent" never transitions.
func (e *Engine) PromoteTail(ctx context.Context, conv Conversation, messageID string) (models.Message, bool, error) {
	var promoted models.Message
	changed := false
	_, err := e.store.Update(ctx, conv.Key, func(msgs []models.Message) ([]models.Message, error) {
		n := len(msgs)
		if n == 0 || msgs[n-1].ID != messageID || msgs[n-1].Status != models.StatusSent {
			return msgs, nil
		}
		msgs[n-1].Status = models.StatusSeen
		promoted = msgs[n-1]
		changed = true
		return msgs, nil
	})
	if err != nil {
		return models.Message{}, false, err
	}
	return promoted, changed, nil
}

// CancelDelivery stops any pending status promotion for the conversation,
// called on view teardown so a dead view's snapshot is never written.
func (e *Engine) CancelDelivery(conv Conversation) {
	if e.delivery != nil {
		e.delivery.Cancel(conv.Key)
	}
}

func (e *Engine) authorize(ctx context.Context, conv Conversation, userID string) error {
	if conv.Direct {
		if !conv.hasUser(userID) {
			return repositories.ErrUnauthorized
		}
		return nil
	}
	member, err := e.groups.IsMember(ctx, conv.GroupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return repositories.ErrUnauthorized
	}
	return nil
}

func findMessage(msgs []models.Message, id string) *models.Message {
	for i := range msgs {
		if msgs[i].ID == id {
			return &msgs[i]
		}
	}
	return nil
}

func replyPreview(msgs []models.Message, replyTo string) string {
	ref := findMessage(msgs, replyTo)
	if ref == nil || ref.DeletedForEveryone {
		return replyFallback
	}
	switch {
	case ref.ImageURI != "":
		return "image"
	case ref.AudioURI != "":
		return "voice message"
	default:
		return ref.Text
	}
}

func kindOf(conv Conversation) string {
	if conv.Direct {
		return "chat"
	}
	return "group"
}
