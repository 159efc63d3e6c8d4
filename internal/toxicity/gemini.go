package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	log "github.com/sirupsen/logrus"
)

// Ответ модели больше этого размера считаем неразборчивым.
const maxResponseBytes = 1 << 20

const safetyPrompt = `Проанализируй сообщение из чата (на любом языке) и ответь JSON-объектом:
- is_toxic: есть ли в сообщении мат, оскорбления или вредный контент (true/false)
- severity: степень вредности, целое от 0 до 10
- reason: короткое пояснение на русском
- category: одна из clean, profanity, insult, threat, spam, other

Сообщение: %q

Ответь только JSON.`

// GeminiClient обращается к Gemini generateContent.
type GeminiClient struct {
	Client  *http.Client
	BaseURL string
	Model   string
	APIKey  string
}

var _ Classifier = (*GeminiClient)(nil)

// NewGeminiClient создаёт клиента с повторами на временных ошибках.
func NewGeminiClient(baseURL, model, apiKey string, retries int) *GeminiClient {
	return &GeminiClient{
		Client:  RobustHTTPClient(retries),
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		APIKey:  apiKey,
	}
}

// schema: https://ai.google.dev/api/generate-content
type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type rawVerdict struct {
	IsToxic  *bool    `json:"is_toxic"`
	Severity *float64 `json:"severity"`
	Reason   string   `json:"reason"`
	Category string   `json:"category"`
}

// CheckToxicity отправляет текст модели и разбирает её вердикт.
// Любая ошибка возвращается вызывающему; решение fail-open принимает Pool.
func (c *GeminiClient) CheckToxicity(ctx context.Context, text string) (Verdict, error) {
	answer, err := c.generate(ctx, geminiRequest{
		Contents: []geminiContent{{
			Role:  RoleUser,
			Parts: []geminiPart{{Text: fmt.Sprintf(safetyPrompt, text)}},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return Verdict{}, err
	}

	verdict, err := ParseVerdict(answer)
	if err != nil {
		return Verdict{}, err
	}
	log.WithFields(log.Fields{
		"is_toxic": verdict.IsToxic,
		"severity": verdict.Severity,
		"category": verdict.Category,
	}).Debug("Вердикт Gemini")
	return verdict, nil
}

// Роли реплик в диалоге Gemini.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn — одна реплика диалога.
type Turn struct {
	Role string
	Text string
}

// Chat продолжает диалог history сообщением text и возвращает ответ модели.
func (c *GeminiClient) Chat(ctx context.Context, history []Turn, text string) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, geminiContent{Role: turn.Role, Parts: []geminiPart{{Text: turn.Text}}})
	}
	contents = append(contents, geminiContent{Role: RoleUser, Parts: []geminiPart{{Text: text}}})

	return c.generate(ctx, geminiRequest{
		Contents:         contents,
		GenerationConfig: generationConfig{Temperature: 0.7},
	})
}

// generate выполняет generateContent и возвращает текст первого кандидата.
func (c *GeminiClient) generate(ctx context.Context, greq geminiRequest) (string, error) {
	body, err := json.Marshal(greq)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, url.PathEscape(c.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)
	req.Header.Set("User-Agent", "guardian-bot/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		externalAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	externalAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read gemini resp body: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("failed to parse gemini resp JSON: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini resp has no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// ParseVerdict разбирает JSON-вердикт модели. Обёртка ```json ... ``` допускается.
// Отсутствующие поля и severity вне 0..10 — ошибка разбора.
func ParseVerdict(text string) (Verdict, error) {
	text = stripFences(text)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Verdict{}, fmt.Errorf("malformed verdict: %w", err)
	}
	if raw.IsToxic == nil || raw.Severity == nil {
		return Verdict{}, fmt.Errorf("malformed verdict: is_toxic and severity are required")
	}
	if *raw.Severity < 0 || *raw.Severity > MaxSeverity {
		return Verdict{}, fmt.Errorf("malformed verdict: severity %v out of range", *raw.Severity)
	}

	return Verdict{
		Status:   StatusOK,
		IsToxic:  *raw.IsToxic,
		Severity: int(*raw.Severity),
		Reason:   strings.TrimSpace(raw.Reason),
		Category: parseCategory(raw.Category),
	}, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = rest
	}
	return strings.TrimSpace(text)
}

func parseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryClean, CategoryProfanity, CategoryInsult, CategoryThreat, CategorySpam:
		return c
	default:
		return CategoryOther
	}
}
