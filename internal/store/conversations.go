package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ConversationStore persists chat histories in a single JSON file keyed by
// session id. Not built for high write throughput but sufficient for a demo
// deployment.
type ConversationStore struct {
	path string
	mu   sync.Mutex
}

func NewConversationStore(path string) (*ConversationStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	s := &ConversationStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(map[string][]ChatMessage{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *ConversationStore) NewSession() string {
	return uuid.NewString()
}

// read tolerates a missing or corrupt file and starts over with an empty map.
func (s *ConversationStore) read() map[string][]ChatMessage {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return map[string][]ChatMessage{}
	}
	var data map[string][]ChatMessage
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return map[string][]ChatMessage{}
	}
	return data
}

func (s *ConversationStore) write(data map[string][]ChatMessage) error {
	return writeJSONFile(s.path, data)
}

// History returns a copy of the stored messages for the session, oldest first.
func (s *ConversationStore) History(sessionID string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.read()
	history := make([]ChatMessage, len(data[sessionID]))
	copy(history, data[sessionID])
	return history
}

// SaveHistory replaces the stored history for the session.
func (s *ConversationStore) SaveHistory(sessionID string, history []ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.read()
	data[sessionID] = history
	return s.write(data)
}
