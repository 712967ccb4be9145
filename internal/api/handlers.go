package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"house-price-chatbot/internal/config"
	"house-price-chatbot/internal/core"
	"house-price-chatbot/internal/store"
)

type APIHandler struct {
	chatService  *core.ChatService
	priceService *core.PriceService
	locations    *store.LocationStore
	houses       *store.HouseStore
	logger       *zap.Logger
}

func NewAPIHandler(
	chatService *core.ChatService,
	priceService *core.PriceService,
	locations *store.LocationStore,
	houses *store.HouseStore,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		chatService:  chatService,
		priceService: priceService,
		locations:    locations,
		houses:       houses,
		logger:       logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	SessionID      string              `json:"session_id"`
	Reply          string              `json:"reply"`
	History        []store.ChatMessage `json:"history"`
	DetectedFields map[string]string   `json:"detected_fields"`
	Prediction     *float64            `json:"prediction"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Missing 'message' from user")
		return
	}

	result, err := h.chatService.HandleMessage(strings.TrimSpace(req.SessionID), message)
	if err != nil {
		h.logger.Error("chat turn failed", zap.Error(err))
		if errors.Is(err, core.ErrLLMUnavailable) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to process chat message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:      result.SessionID,
		Reply:          result.Reply,
		History:        result.History,
		DetectedFields: result.DetectedFields,
		Prediction:     result.Prediction,
	})
}

type ChatHistoryResponse struct {
	SessionID      string              `json:"session_id"`
	History        []store.ChatMessage `json:"history"`
	DetectedFields map[string]string   `json:"detected_fields"`
}

func (h *APIHandler) GetChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, detected, err := h.chatService.SessionHistory(sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Chat session not found")
			return
		}
		h.logger.Error("failed to load chat history", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}

	writeJSON(w, http.StatusOK, ChatHistoryResponse{
		SessionID:      sessionID,
		History:        history,
		DetectedFields: detected,
	})
}

type PredictHouseRequest struct {
	Location  string   `json:"location"`
	TotalSqft *float64 `json:"total_sqft"`
	Bath      *int     `json:"bath"`
	BHK       *int     `json:"bhk"`
}

type PredictHouseInput struct {
	Location  string  `json:"location"`
	TotalSqft float64 `json:"total_sqft"`
	Bath      int     `json:"bath"`
	BHK       int     `json:"bhk"`
}

type PredictHouseResponse struct {
	Input              PredictHouseInput `json:"input"`
	PredictedPriceLakh float64           `json:"predicted_price_lakh"`
	RecordID           string            `json:"record_id"`
}

func (h *APIHandler) PredictHouseHandler(w http.ResponseWriter, r *http.Request) {
	var req PredictHouseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var missing []string
	if strings.TrimSpace(req.Location) == "" {
		missing = append(missing, "location")
	}
	if req.TotalSqft == nil {
		missing = append(missing, "total_sqft")
	}
	if req.Bath == nil {
		missing = append(missing, "bath")
	}
	if req.BHK == nil {
		missing = append(missing, "bhk")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Missing fields: "+strings.Join(missing, ", "))
		return
	}

	canonical := h.locations.Canonicalize(req.Location)
	if canonical == "" {
		writeError(w, http.StatusBadRequest, "Unsupported location")
		return
	}

	price, err := h.priceService.Predict(canonical, *req.TotalSqft, *req.Bath, *req.BHK)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.logger.Error("prediction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not run the price model")
		return
	}

	record, err := h.houses.Add(store.HouseRecord{
		Location:           canonical,
		TotalSqft:          *req.TotalSqft,
		Bath:               *req.Bath,
		BHK:                *req.BHK,
		PredictedPriceLakh: &price,
		Source:             "api",
	})
	if err != nil {
		h.logger.Error("failed to store prediction record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store prediction record")
		return
	}

	writeJSON(w, http.StatusOK, PredictHouseResponse{
		Input: PredictHouseInput{
			Location:  canonical,
			TotalSqft: *req.TotalSqft,
			Bath:      *req.Bath,
			BHK:       *req.BHK,
		},
		PredictedPriceLakh: price,
		RecordID:           record.ID,
	})
}

type HouseRecordsResponse struct {
	Records []store.HouseRecord `json:"records"`
}

func (h *APIHandler) ListHouseRecordsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HouseRecordsResponse{Records: h.houses.List()})
}

type LocationsResponse struct {
	Locations []store.Location `json:"locations"`
	Names     []string         `json:"names"`
}

func (h *APIHandler) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	locations := h.locations.Locations()
	names := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc.Name != "" {
			names = append(names, loc.Name)
		}
	}
	writeJSON(w, http.StatusOK, LocationsResponse{Locations: locations, Names: names})
}

// RootHandler redirects to the frontend when one is configured, otherwise it
// returns a JSON notice so deployed instances don't redirect to localhost.
func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	if url := config.AppConfig.FrontendURL; url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Backend is running. Set FRONTEND_URL to enable redirect.",
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
