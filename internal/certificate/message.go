package certificate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/szdorah/Quiz0r-sub001/internal/game"
)

// AIMessenger asks a chat-completions backend for a short personalized
// congratulation. Without an API key it degrades to a deterministic
// per-language fallback, so certificate generation never depends on an
// external service being configured.
type AIMessenger struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

func NewAIMessenger(apiKey, apiURL, model string) *AIMessenger {
	return &AIMessenger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
	}
}

func (m *AIMessenger) IsAvailable() bool {
	return m.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const congratsPrompt = `You write one short congratulation line (max 25 words) for a trivia game certificate. Respond with the line only, no quotes, in the language of the given language code.`

func (m *AIMessenger) Congratulation(player game.RankedPlayer, quizTitle string) (string, error) {
	if !m.IsAvailable() {
		return FallbackMessage(player), nil
	}

	user := fmt.Sprintf(
		"language=%s player=%s rank=%d score=%d quiz=%q powers=%s",
		player.LanguageCode, player.Name, player.Rank, player.Score, quizTitle,
		strings.Join(player.PowerUpsUsed, ","),
	)
	reqBody := chatRequest{
		Model: m.model,
		Messages: []chatMessage{
			{Role: "system", Content: congratsPrompt},
			{Role: "user", Content: user},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", m.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from AI")
	}

	message := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if message == "" {
		return "", fmt.Errorf("blank message from AI")
	}
	return message, nil
}

var fallbackByLanguage = map[string]string{
	"en": "Congratulations %s! You finished #%d with %d points. Well played!",
	"es": "¡Felicidades %s! Terminaste en el puesto %d con %d puntos. ¡Bien jugado!",
	"fr": "Félicitations %s ! Vous avez terminé %de avec %d points. Bien joué !",
	"de": "Glückwunsch %s! Du hast Platz %d mit %d Punkten erreicht. Gut gespielt!",
}

// FallbackMessage is the deterministic congratulation used when no AI
// backend is configured: same player, same text, every time.
func FallbackMessage(player game.RankedPlayer) string {
	format, ok := fallbackByLanguage[player.LanguageCode]
	if !ok {
		format = fallbackByLanguage["en"]
	}
	return fmt.Sprintf(format, player.Name, player.Rank, player.Score)
}
