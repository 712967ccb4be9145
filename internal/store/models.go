package store

type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type HouseRecord struct {
	ID                 string   `json:"id"` // Using UUID for external ID
	SessionID          string   `json:"session_id,omitempty"`
	Location           string   `json:"location"`
	TotalSqft          float64  `json:"total_sqft"`
	Bath               int      `json:"bath"`
	BHK                int      `json:"bhk"`
	PredictedPriceLakh *float64 `json:"predicted_price_lakh"` // Nullable
	Source             string   `json:"source"` // "chat" or "api"
}

type Location struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
