package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"house-price-chatbot/internal/config"
	"house-price-chatbot/internal/store"
)

const chatSystemInstruction = "You are an assistant that helps estimate house prices in Bengaluru. " +
	"Never guess or compute a price yourself; a separate pricing model does that. " +
	"Your job is to collect the four inputs the model needs: location (area name), total_sqft (built-up area), " +
	"bath (number of bathrooms) and bhk (number of bedrooms). " +
	"If any of them is missing, ask follow-up questions until you have all four. " +
	"Once all four are known, briefly summarise the values back to the user and say they will be sent to the pricing model. " +
	"When a message starting with [model result] appears in the conversation, report that predicted price (in lakhs) " +
	"to the user with a short explanation."

const stubReplyPrefix = "GEMINI_API_KEY is not configured, so this is a draft reply: "

// LLMService phrases assistant replies with Gemini. When no API key is
// configured the service runs in stub mode and echoes a draft reply instead
// of calling out, so the rest of the flow stays testable in dev environments.
type LLMService struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
	logger      *zap.Logger
}

func NewLLMService(logger *zap.Logger) (*LLMService, error) {
	s := &LLMService{
		modelName:   config.AppConfig.GeminiModelName,
		temperature: config.AppConfig.GeminiTemperature,
		maxTokens:   config.AppConfig.GeminiMaxTokens,
		logger:      logger,
	}

	if config.AppConfig.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, LLM replies will be stubbed")
		return s, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

// Chat sends the conversation to Gemini and returns the assistant reply. The
// last message must come from the user.
func (s *LLMService) Chat(messages []store.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("conversation is empty for chat completion")
	}

	if s.client == nil {
		return stubReplyPrefix + messages[len(messages)-1].Content, nil
	}

	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	lastUserMessage := history[len(history)-1]
	if lastUserMessage.Role != "user" {
		return "", fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	ctx := context.Background()
	model := s.client.GenerativeModel(s.modelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}

	temp := s.temperature
	maxTokens := s.maxTokens
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	chatSession := model.StartChat()
	chatSession.History = history[:len(history)-1]

	// Send the parts of the last user message.
	resp, err := chatSession.SendMessage(ctx, lastUserMessage.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("gemini response was empty or had no valid candidates")
		return "I'm sorry, I couldn't generate a response at this time. Please try again.", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Warn("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	if responseText.Len() == 0 {
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}

	return responseText.String(), nil
}
