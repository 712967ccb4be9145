package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// HouseStore persists prediction inputs and results in a single JSON file.
type HouseStore struct {
	path string
	mu   sync.Mutex
}

func NewHouseStore(path string) (*HouseStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	s := &HouseStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write([]HouseRecord{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *HouseStore) read() []HouseRecord {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return []HouseRecord{}
	}
	var data []HouseRecord
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return []HouseRecord{}
	}
	return data
}

func (s *HouseStore) write(data []HouseRecord) error {
	return writeJSONFile(s.path, data)
}

// Add assigns the record a fresh id and appends it to the file.
func (s *HouseStore) Add(record HouseRecord) (HouseRecord, error) {
	record.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	data := append(s.read(), record)
	if err := s.write(data); err != nil {
		return HouseRecord{}, fmt.Errorf("failed to store house record: %w", err)
	}
	return record, nil
}

// List returns a copy of all stored records in insertion order.
func (s *HouseStore) List() []HouseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.read()
	records := make([]HouseRecord, len(data))
	copy(records, data)
	return records
}
