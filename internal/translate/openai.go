package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snarg/audio-translator/internal/remote"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o"

	chatCompletionsPath = "/v1/chat/completions"
)

// OpenAIClient translates with the chat completions API.
// Implements the Translator interface.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a translation client. An empty baseURL or model
// selects the OpenAI defaults.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Model returns the configured model identifier.
func (oc *OpenAIClient) Model() string { return oc.model }

// SystemPrompt is the instruction sent ahead of the text.
func SystemPrompt(targetLanguage string) string {
	return fmt.Sprintf("You are a professional translator. Translate the following text into %s.", targetLanguage)
}

// Translate sends one chat completion request and returns the first choice.
func (oc *OpenAIClient) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: oc.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(targetLanguage)},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oc.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+oc.apiKey)

	resp, err := oc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", remote.Classify(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", remote.Classify(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation API: %w", remote.FromResponse(resp.StatusCode, body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("translation API returned no choices")
	}

	return result.Choices[0].Message.Content, nil
}
