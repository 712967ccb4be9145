package core

import (
	"sync"

	"house-price-chatbot/internal/regression"
)

// PriceService evaluates the trained regression model. The artifact is loaded
// lazily on first use and cached for the lifetime of the process.
type PriceService struct {
	modelPath string

	mu    sync.Mutex
	model *regression.Model
}

func NewPriceService(modelPath string) *PriceService {
	return &PriceService{modelPath: modelPath}
}

func (s *PriceService) load() (*regression.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s.model, nil
	}
	model, err := regression.Load(s.modelPath)
	if err != nil {
		return nil, err
	}
	s.model = model
	return model, nil
}

// Predict returns the estimated price in lakhs for the given house.
func (s *PriceService) Predict(location string, totalSqft float64, bath, bhk int) (float64, error) {
	model, err := s.load()
	if err != nil {
		return 0, err
	}
	return model.Predict(location, totalSqft, bath, bhk), nil
}
