package history

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single stored conversation turn. Messages are immutable once
// appended; ID and CreatedAt are assigned by the Store, never by callers.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Model     string    `json:"model,omitempty"`
	ImageURLs []string  `json:"imageUrls,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Draft is the caller-supplied part of a message. The Store fills in the
// identity and timestamp on append.
type Draft struct {
	Role      Role
	Content   string
	Model     string
	ImageURLs []string
	Error     string
}

// SessionHistory is one conversation: an append-only, chronological message
// log. UpdatedAt always equals the CreatedAt of the most recent message.
type SessionHistory struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *SessionHistory) clone() *SessionHistory {
	out := &SessionHistory{
		SessionID: s.SessionID,
		Messages:  make([]Message, len(s.Messages)),
		UpdatedAt: s.UpdatedAt,
	}
	copy(out.Messages, s.Messages)
	for i, m := range s.Messages {
		if m.ImageURLs != nil {
			urls := make([]string, len(m.ImageURLs))
			copy(urls, m.ImageURLs)
			out.Messages[i].ImageURLs = urls
		}
	}
	return out
}
