package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// StatusNotifier receives status promotions so they can be fanned out to
// live viewers.
type StatusNotifier interface {
	MessageSeen(conv Conversation, msg models.Message)
}

// DeliverySimulator is a DeliveryObserver that stands in for a real
// acknowledgement protocol: after a fixed delay the most recently sent
// message of a direct conversation is promoted to seen. At most one timer
// exists per conversation; a newer send replaces the pending one, and
// Cancel or Close stops timers before they can touch torn-down state.
type DeliverySimulator struct {
	delay  time.Duration
	notify StatusNotifier

	mu     sync.Mutex
	timers map[string]*time.Timer
	engine *Engine
	closed bool
}

// NewDeliverySimulator constructs a simulator. notify may be nil.
func NewDeliverySimulator(delay time.Duration, notify StatusNotifier) *DeliverySimulator {
	return &DeliverySimulator{
		delay:  delay,
		notify: notify,
		timers: map[string]*time.Timer{},
	}
}

// Bind attaches the engine the simulator promotes through. Separate from
// the constructor because the engine itself takes the simulator as its
// DeliveryObserver.
func (s *DeliverySimulator) Bind(e *Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = e
}

// MessageSent schedules a promotion for the message. Only direct-chat
// messages with status sent are eligible; group messages never advance.
func (s *DeliverySimulator) MessageSent(conv Conversation, msg models.Message) {
	if !conv.Direct || msg.Status != models.StatusSent {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[conv.Key]; ok {
		timer.Stop()
	}
	s.timers[conv.Key] = time.AfterFunc(s.delay, func() {
		s.promote(conv, msg.ID)
	})
}

// Cancel stops the pending promotion for a conversation.
func (s *DeliverySimulator) Cancel(conversationKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[conversationKey]; ok {
		timer.Stop()
		delete(s.timers, conversationKey)
	}
}

// Close cancels every pending promotion and rejects new ones.
func (s *DeliverySimulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *DeliverySimulator) promote(conv Conversation, messageID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, conv.Key)
	eng := s.engine
	s.mu.Unlock()

	if eng == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, promoted, err := eng.PromoteTail(ctx, conv, messageID)
	if err != nil {
		log.Printf("delivery promotion failed key=%s: %v", conv.Key, err)
		return
	}
	if !promoted {
		return
	}
	observability.IncDeliveryPromotion()
	if s.notify != nil {
		s.notify.MessageSeen(conv, msg)
	}
}
