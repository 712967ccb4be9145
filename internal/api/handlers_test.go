package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"house-price-chatbot/internal/config"
	"house-price-chatbot/internal/core"
	"house-price-chatbot/internal/store"
)

const testModelArtifact = `{
	"model": "linear_regression",
	"intercept": 10.0,
	"feature_columns": ["total_sqft", "bath", "BHK", "Indira Nagar", "Whitefield"],
	"coefficients": [0.05, 2.0, 3.0, 25.0, 12.5]
}`

type apiEnv struct {
	router http.Handler
	houses *store.HouseStore
}

// newAPIEnv wires the full router against temp stores and a stubbed LLM, so
// handler tests exercise the real middleware chain without network calls.
func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	previous := config.AppConfig
	t.Cleanup(func() { config.AppConfig = previous })

	dir := t.TempDir()
	config.AppConfig = config.Config{
		GeminiModelName:   "gemini-1.5-flash-latest",
		GeminiTemperature: 0.6,
		GeminiMaxTokens:   1024,
		DataDir:           dir,
		ModelPath:         filepath.Join(dir, "price_model.json"),
	}
	require.NoError(t, os.WriteFile(config.AppConfig.ModelPath, []byte(testModelArtifact), 0o644))

	logger := zap.NewNop()
	conversations, err := store.NewConversationStore(filepath.Join(dir, "conversations.json"))
	require.NoError(t, err)
	houses, err := store.NewHouseStore(filepath.Join(dir, "houses.json"))
	require.NoError(t, err)
	locations, err := store.NewLocationStore(filepath.Join(dir, "locations.json"), logger)
	require.NoError(t, err)
	require.NoError(t, locations.Save([]store.Location{
		{Name: "Whitefield", Count: 540},
		{Name: "Indira Nagar", Count: 372},
	}))

	llm, err := core.NewLLMService(logger)
	require.NoError(t, err)
	t.Cleanup(llm.Close)

	priceService := core.NewPriceService(config.AppConfig.ModelPath)
	chatService := core.NewChatService(conversations, houses, locations, priceService, llm, logger)
	handler := NewAPIHandler(chatService, priceService, locations, houses, logger)

	return &apiEnv{router: NewRouter(handler, logger), houses: houses}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func TestChatEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("missing message", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/chat", map[string]string{"message": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Missing 'message' from user"}`, rec.Body.String())
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("not json"))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var sessionID string
	t.Run("first turn starts a session", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/chat", ChatRequest{Message: "Hi"})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var resp ChatResponse
		decodeJSON(t, rec, &resp)
		require.NotEmpty(t, resp.SessionID)
		sessionID = resp.SessionID
		assert.Equal(t, "GEMINI_API_KEY is not configured, so this is a draft reply: Hi", resp.Reply)
		assert.Nil(t, resp.Prediction)
		assert.Len(t, resp.History, 2)
		assert.Empty(t, resp.DetectedFields)
	})

	t.Run("complete fields trigger a prediction", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/chat", ChatRequest{
			Message:   "location: Whitefield; total_sqft: 1200; bath: 2; bhk: 3",
			SessionID: sessionID,
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var resp ChatResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, sessionID, resp.SessionID)
		require.NotNil(t, resp.Prediction)
		assert.InDelta(t, 95.5, *resp.Prediction, 1e-9)
		assert.Len(t, resp.History, 4)

		want := map[string]string{
			"location":   "Whitefield",
			"total_sqft": "1200",
			"bath":       "2",
			"bhk":        "3",
		}
		if diff := cmp.Diff(want, resp.DetectedFields); diff != "" {
			t.Errorf("detected_fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("history is retrievable", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodGet, "/api/chat/"+sessionID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ChatHistoryResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, sessionID, resp.SessionID)
		assert.Len(t, resp.History, 4)
		assert.Equal(t, "Whitefield", resp.DetectedFields["location"])
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodGet, "/api/chat/no-such-session", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "Chat session not found"}`, rec.Body.String())
	})
}

func TestChatEndpointUnsupportedLocation(t *testing.T) {
	env := newAPIEnv(t)

	rec := doRequest(t, env.router, http.MethodPost, "/api/chat", ChatRequest{Message: "location: Hanoi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Reply, "does not support that area")
	assert.Nil(t, resp.Prediction)
}

func TestPredictEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("missing fields", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/house/predict", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Missing fields: location, total_sqft, bath, bhk"}`, rec.Body.String())
	})

	t.Run("unsupported location", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/house/predict", map[string]any{
			"location": "Hanoi", "total_sqft": 1200, "bath": 2, "bhk": 3,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "Unsupported location"}`, rec.Body.String())
	})

	t.Run("non-numeric values", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/house/predict", map[string]any{
			"location": "Whitefield", "total_sqft": "plenty", "bath": 2, "bhk": 3,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid request body")
	})

	t.Run("predicts and stores a record", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodPost, "/api/house/predict", map[string]any{
			"location": "whitefield", "total_sqft": 1200, "bath": 2, "bhk": 3,
		})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		var resp PredictHouseResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "Whitefield", resp.Input.Location)
		assert.InDelta(t, 95.5, resp.PredictedPriceLakh, 1e-9)
		assert.NotEmpty(t, resp.RecordID)

		records := env.houses.List()
		require.Len(t, records, 1)
		assert.Equal(t, resp.RecordID, records[0].ID)
		assert.Equal(t, "api", records[0].Source)
		assert.Empty(t, records[0].SessionID)
	})

	t.Run("records are listed", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodGet, "/api/house/records", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HouseRecordsResponse
		decodeJSON(t, rec, &resp)
		require.Len(t, resp.Records, 1)
		assert.Equal(t, "Whitefield", resp.Records[0].Location)
	})
}

func TestPredictEndpointModelMissing(t *testing.T) {
	env := newAPIEnv(t)
	require.NoError(t, os.Remove(config.AppConfig.ModelPath))

	rec := doRequest(t, env.router, http.MethodPost, "/api/house/predict", map[string]any{
		"location": "Whitefield", "total_sqft": 1200, "bath": 2, "bhk": 3,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to read model artifact")
}

func TestLocationsEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := doRequest(t, env.router, http.MethodGet, "/api/locations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LocationsResponse
	decodeJSON(t, rec, &resp)
	want := LocationsResponse{
		Locations: []store.Location{
			{Name: "Whitefield", Count: 540},
			{Name: "Indira Nagar", Count: 372},
		},
		Names: []string{"Whitefield", "Indira Nagar"},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := doRequest(t, env.router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestRootEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	t.Run("notice without frontend", func(t *testing.T) {
		rec := doRequest(t, env.router, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message": "Backend is running. Set FRONTEND_URL to enable redirect."}`, rec.Body.String())
	})

	t.Run("redirects to the frontend", func(t *testing.T) {
		config.AppConfig.FrontendURL = "https://houses.example.com"
		defer func() { config.AppConfig.FrontendURL = "" }()

		rec := doRequest(t, env.router, http.MethodGet, "/", nil)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://houses.example.com", rec.Header().Get("Location"))
	})
}

func TestCORSPreflight(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
