package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tutordesk/backend/internal/models"
	"go.uber.org/zap"
)

const (
	TopicClasses       = "classes"
	TopicClassRequests = "class_requests"
	TopicHomework      = "homework"
	TopicPayments      = "payment_notifications"
	TopicAvailability  = "availability"
	TopicBlogPosts     = "blog_posts"
	TopicSettings      = "settings"
	TopicMessages      = "messages"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event tells listeners that a row changed so they refetch it.
type Event struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id,omitempty"`
	TeacherID int64     `json:"teacher_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	ActorID   int64     `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
	// Public events go to every subscriber of the topic, not only participants.
	Public bool `json:"-"`
}

// Publisher is what services need from the hub.
type Publisher interface {
	Publish(event Event)
}

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	log        *zap.Logger

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan Event, 256),
		done:        make(chan struct{}),
		log:         log.Named("realtime"),
		subscribers: make(map[chan Event]struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.closeSubscribers()
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish never blocks the caller; events are dropped when the hub is saturated.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("dropping realtime event", zap.String("entity", event.Entity), zap.Int64("id", event.ID))
	}
}

// Subscribe returns an in-process feed of every event. The returned func detaches it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
		})
	}
}

func (h *Hub) closeSubscribers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.log.Warn("subscriber too slow, event dropped", zap.String("entity", event.Entity))
		}
	}
	h.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("encode realtime event", zap.Error(err))
		return
	}

	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ParseTopics splits a comma separated topic list. An empty list means every topic.
func ParseTopics(raw string) map[string]struct{} {
	topics := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		if topic := strings.TrimSpace(part); topic != "" {
			topics[topic] = struct{}{}
		}
	}
	return topics
}

func audienceIncludes(event Event, userID int64, role string) bool {
	if event.Public || role == models.RoleAdmin {
		return true
	}
	return userID != 0 && (event.StudentID == userID || event.TeacherID == userID)
}
