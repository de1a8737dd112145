package store

import "time"

// Status mirrors the lifecycle a message's delivery status passes through.
// The same strings travel in Ack frames and in message_ack events.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// MessageRow is a persisted chat message, direct or group.
type MessageRow struct {
	ID             string
	ConversationID string
	FromID         string
	FromName       string
	Content        string
	Timestamp      time.Time
	IsGroup        bool
	Status         string
}

// InsertMessage records a new message, ignoring the call if the id already
// exists. Message ids are produced by the sender and are idempotent: a
// retried send (see delivery.SendWithRetry) must not duplicate history.
func (s *Store) InsertMessage(m MessageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	isGroup := 0
	if m.IsGroup {
		isGroup = 1
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO messages
		   (id, conversation_id, from_id, from_name, content, timestamp, is_group, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.FromID, m.FromName, m.Content,
		// Fixed-width fraction so that ORDER BY timestamp on the text
		// column sorts chronologically.
		m.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), isGroup, m.Status,
	)
	return err
}

// UpdateMessageStatus transitions a message's delivery status, keyed by id.
func (s *Store) UpdateMessageStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE messages SET status = ? WHERE id = ?`, status, id)
	return err
}

// DefaultHistoryLimit is the row cap applied when a caller doesn't request
// a specific limit, matching the reference client's load_history default.
const DefaultHistoryLimit = 200

// LoadHistory returns up to limit messages for a conversation (a peer id
// for direct messages, a group id for group messages), ordered oldest
// first.
func (s *Store) LoadHistory(conversationID string, limit int) ([]MessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, conversation_id, from_id, from_name, content, timestamp, is_group, status
		 FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		var ts string
		var isGroup int
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.FromID, &m.FromName, &m.Content, &ts, &isGroup, &m.Status); err != nil {
			return nil, err
		}
		m.IsGroup = isGroup != 0
		m.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			m.Timestamp, _ = time.Parse(time.RFC3339, ts)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
