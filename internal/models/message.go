package models

// Status values a message moves through. The only forward transition is
// sent -> seen; not sent is terminal and assigned at creation time.
const (
	StatusSent    = "sent"
	StatusSeen    = "seen"
	StatusNotSent = "not sent"
)

// DeletedPlaceholder replaces the body of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted."

// Message is a stored chat message. The JSON shape is the persisted schema:
// conversations are stored as JSON arrays of this struct.
type Message struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text,omitempty"`
	ImageURI           string   `json:"imageUri,omitempty"`
	AudioURI           string   `json:"audioUri,omitempty"`
	DurationMillis     int64    `json:"durationMillis,omitempty"`
	Sender             string   `json:"sender"`
	SenderName         string   `json:"senderName,omitempty"`
	Timestamp          int64    `json:"timestamp"`
	Status             string   `json:"status"`
	ReplyTo            string   `json:"replyTo,omitempty"`
	DeletedFor         []string `json:"deletedFor,omitempty"`
	Edited             bool     `json:"edited,omitempty"`
	DeletedForEveryone bool     `json:"deletedForEveryone,omitempty"`
}

// HasText reports whether the message carries a text payload. Messages
// deleted for everyone hold placeholder text but are not editable text.
func (m Message) HasText() bool {
	return m.Text != "" && m.ImageURI == "" && m.AudioURI == ""
}

// DeletedForUser reports whether viewerID hid this message for themself.
func (m Message) DeletedForUser(viewerID string) bool {
	for _, id := range m.DeletedFor {
		if id == viewerID {
			return true
		}
	}
	return false
}

// Body is the payload of an outgoing message. Exactly one of Text,
// ImageURI or AudioURI must be set.
type Body struct {
	Text           string `json:"text,omitempty"`
	ImageURI       string `json:"imageUri,omitempty"`
	AudioURI       string `json:"audioUri,omitempty"`
	DurationMillis int64  `json:"durationMillis,omitempty"`
}

// Kind returns which payload the body carries, or "" when it is ambiguous
// or empty.
func (b Body) Kind() string {
	set := 0
	kind := ""
	if b.Text != "" {
		set++
		kind = "text"
	}
	if b.ImageURI != "" {
		set++
		kind = "image"
	}
	if b.AudioURI != "" {
		set++
		kind = "audio"
	}
	if set != 1 {
		return ""
	}
	return kind
}

// Event is broadcast through websockets to everyone viewing a conversation.
type Event struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	Status    string   `json:"status,omitempty"`
}
