package regression

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Model is a trained linear regression exported as a JSON artifact. The
// feature vector is total_sqft, bath and BHK followed by one dummy column per
// supported location.
type Model struct {
	Name           string    `json:"model"`
	Intercept      float64   `json:"intercept"`
	FeatureColumns []string  `json:"feature_columns"`
	Coefficients   []float64 `json:"coefficients"`
}

// Load reads and validates a model artifact.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	if len(m.FeatureColumns) == 0 {
		return nil, fmt.Errorf("model artifact %s has no feature columns", path)
	}
	if len(m.FeatureColumns) != len(m.Coefficients) {
		return nil, fmt.Errorf("model artifact %s has %d feature columns but %d coefficients",
			path, len(m.FeatureColumns), len(m.Coefficients))
	}
	return &m, nil
}

// Predict evaluates the regression for one house and returns the price in
// lakhs. A location without its own dummy column contributes nothing, which
// matches the catch-all bucket used during training.
func (m *Model) Predict(location string, totalSqft float64, bath, bhk int) float64 {
	location = strings.TrimSpace(location)
	price := m.Intercept
	for i, column := range m.FeatureColumns {
		switch column {
		case "total_sqft":
			price += m.Coefficients[i] * totalSqft
		case "bath":
			price += m.Coefficients[i] * float64(bath)
		case "BHK":
			price += m.Coefficients[i] * float64(bhk)
		default:
			if column == location {
				price += m.Coefficients[i]
			}
		}
	}
	return price
}
