package amqp

import (
	"encoding/json"
	"time"
)

// JournalSyncMessage asks the mirror worker to sync one journal record. It
// carries only the id and the tick it was recorded at; the worker fetches the
// full record from the repository.
type JournalSyncMessage struct {
	ID         uint64    `json:"id"`
	RecordedAt uint64    `json:"recorded_at"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewJournalSyncMessage(id, recordedAt uint64) *JournalSyncMessage {
	return &JournalSyncMessage{
		ID:         id,
		RecordedAt: recordedAt,
		Timestamp:  time.Now(),
	}
}

func (m *JournalSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func JournalSyncMessageFromJSON(data []byte) (*JournalSyncMessage, error) {
	var msg JournalSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
