package core

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"house-price-chatbot/internal/extract"
	"house-price-chatbot/internal/store"
)

// ErrSessionNotFound is returned when a session has no stored history.
var ErrSessionNotFound = errors.New("chat session not found")

// ErrLLMUnavailable wraps failures while talking to the language model.
var ErrLLMUnavailable = errors.New("could not reach the LLM")

const unsupportedLocationReply = "The model does not support that area yet. Please pick a valid location from the list."

// Hidden steering messages appended after a model run so the LLM phrases the
// outcome instead of inventing one.
const (
	reportPredictionPrompt = "Report the prediction above to the user with a short explanation."
	reportFailurePrompt    = "Tell the user the prediction could not be completed and ask them to double-check the values."
)

// Responder produces an assistant reply for a conversation.
type Responder interface {
	Chat(messages []store.ChatMessage) (string, error)
}

// ChatService runs the conversational flow: it stores messages, collects the
// price model's inputs from the conversation, runs the model once everything
// is known and lets the LLM phrase the reply.
type ChatService struct {
	conversations *store.ConversationStore
	houses        *store.HouseStore
	locations     *store.LocationStore
	priceService  *PriceService
	llm           Responder
	logger        *zap.Logger
}

func NewChatService(
	conversations *store.ConversationStore,
	houses *store.HouseStore,
	locations *store.LocationStore,
	priceService *PriceService,
	llm Responder,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		houses:        houses,
		locations:     locations,
		priceService:  priceService,
		llm:           llm,
		logger:        logger,
	}
}

// ChatResult is the outcome of one user turn.
type ChatResult struct {
	SessionID      string
	Reply          string
	History        []store.ChatMessage
	DetectedFields map[string]string
	Prediction     *float64
}

// HandleMessage runs one turn of the conversation. A blank session id starts
// a new session.
func (s *ChatService) HandleMessage(sessionID, userMessage string) (*ChatResult, error) {
	if sessionID == "" {
		sessionID = s.conversations.NewSession()
	}
	opts := s.extractOptions()

	history := append(s.conversations.History(sessionID), store.ChatMessage{Role: "user", Content: userMessage})

	rawFields := extract.Fields(userMessage, extract.Options{})
	canonicalFields := extract.Fields(userMessage, opts)

	// The user named an area the model was not trained on. Answer directly
	// instead of letting the LLM improvise a price.
	if rawFields[extract.FieldLocation] != "" && canonicalFields[extract.FieldLocation] == "" {
		history = append(history, store.ChatMessage{Role: "assistant", Content: unsupportedLocationReply})
		if err := s.conversations.SaveHistory(sessionID, history); err != nil {
			return nil, fmt.Errorf("failed to save conversation: %w", err)
		}
		return &ChatResult{
			SessionID:      sessionID,
			Reply:          unsupportedLocationReply,
			History:        history,
			DetectedFields: extract.Merge(history, opts),
		}, nil
	}

	detected := extract.Merge(history, opts)

	var prediction *float64
	var hidden []store.ChatMessage
	if extract.Complete(detected) {
		price, err := s.runModel(sessionID, detected)
		prediction = price
		if err != nil {
			s.logger.Warn("prediction failed", zap.String("session_id", sessionID), zap.Error(err))
			hidden = append(hidden,
				store.ChatMessage{Role: "assistant", Content: fmt.Sprintf("[prediction error] could not run the model: %v", err)},
				store.ChatMessage{Role: "user", Content: reportFailurePrompt},
			)
		} else {
			hidden = append(hidden,
				store.ChatMessage{Role: "assistant", Content: fmt.Sprintf(
					"[model result] location=%s, total_sqft=%s, bath=%s, bhk=%s, predicted price (lakh)=%.2f.",
					detected[extract.FieldLocation],
					detected[extract.FieldTotalSqft],
					detected[extract.FieldBath],
					detected[extract.FieldBHK],
					*price,
				)},
				store.ChatMessage{Role: "user", Content: reportPredictionPrompt},
			)
		}
	}

	prompt := make([]store.ChatMessage, 0, len(history)+len(hidden))
	prompt = append(prompt, history...)
	prompt = append(prompt, hidden...)

	reply, err := s.llm.Chat(prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	history = append(history, store.ChatMessage{Role: "assistant", Content: reply})
	if err := s.conversations.SaveHistory(sessionID, history); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	// Recompute with the reply included so callers see the latest values.
	detected = extract.Merge(history, opts)

	return &ChatResult{
		SessionID:      sessionID,
		Reply:          reply,
		History:        history,
		DetectedFields: detected,
		Prediction:     prediction,
	}, nil
}

// runModel parses the collected fields, evaluates the price model and stores
// the resulting record. The returned price is set as soon as the model ran,
// even if persisting the record failed afterwards.
func (s *ChatService) runModel(sessionID string, fields map[string]string) (*float64, error) {
	totalSqft, err := strconv.ParseFloat(fields[extract.FieldTotalSqft], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid total_sqft %q: %w", fields[extract.FieldTotalSqft], err)
	}
	bath, err := strconv.Atoi(fields[extract.FieldBath])
	if err != nil {
		return nil, fmt.Errorf("invalid bath %q: %w", fields[extract.FieldBath], err)
	}
	bhk, err := strconv.Atoi(fields[extract.FieldBHK])
	if err != nil {
		return nil, fmt.Errorf("invalid bhk %q: %w", fields[extract.FieldBHK], err)
	}

	price, err := s.priceService.Predict(fields[extract.FieldLocation], totalSqft, bath, bhk)
	if err != nil {
		return nil, err
	}

	_, err = s.houses.Add(store.HouseRecord{
		SessionID:          sessionID,
		Location:           fields[extract.FieldLocation],
		TotalSqft:          totalSqft,
		Bath:               bath,
		BHK:                bhk,
		PredictedPriceLakh: &price,
		Source:             "chat",
	})
	if err != nil {
		return &price, fmt.Errorf("failed to store prediction record: %w", err)
	}
	return &price, nil
}

// SessionHistory returns the stored conversation and the fields collected so
// far.
func (s *ChatService) SessionHistory(sessionID string) ([]store.ChatMessage, map[string]string, error) {
	history := s.conversations.History(sessionID)
	if len(history) == 0 {
		return nil, nil, ErrSessionNotFound
	}
	return history, extract.Merge(history, s.extractOptions()), nil
}

func (s *ChatService) extractOptions() extract.Options {
	return extract.Options{
		Lookup: s.locations.Lookup(),
		Names:  s.locations.Names(),
	}
}
