package summarizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"telemed-recording-be/internal/pkg/apperrors"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const summaryPrompt = `You are a medical scribe. Listen to this telemedicine consultation recording between a doctor and a patient and produce a clinical summary.

Respond with ONLY a JSON object in this exact shape:
{
  "content": "narrative summary of the consultation",
  "keyPoints": ["important point 1", "important point 2"],
  "medications": [{"name": "", "dosage": "", "instructions": ""}],
  "followUpInstructions": "follow-up guidance given to the patient"
}

Do not invent medications or diagnoses that were not discussed. If the audio contains only one side of the conversation, summarize what is available.`

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// GeminiProvider summarizes consultations by sending the merged audio
// inline to the Gemini generateContent endpoint.
type GeminiProvider struct {
	apiKey      string
	model       string
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	client      *http.Client
}

func NewGeminiProvider(apiKey, model string, timeout time.Duration, maxRetries int) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GeminiProvider{
		apiKey:      apiKey,
		model:       model,
		baseURL:     defaultGeminiBaseURL,
		maxRetries:  maxRetries,
		backoffBase: 2 * time.Second,
		client:      &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the provider at a different endpoint. Used by tests.
func (p *GeminiProvider) WithBaseURL(url string) *GeminiProvider {
	p.baseURL = strings.TrimRight(url, "/")
	return p
}

func (p *GeminiProvider) Summarize(ctx context.Context, audioPath string, mimeType string, info SourceInfo) (*Result, error) {
	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged audio: %w", err)
	}

	prompt := summaryPrompt
	if info.Partial {
		prompt += "\n\nNote: only one participant's audio track was captured for this consultation."
	}

	payload := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{
					{Text: prompt},
					{InlineData: &geminiInlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(audioBytes),
					}},
				},
				Role: "user",
			},
		},
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	text, err := p.generateWithRetry(ctx, payloadJson)
	if err != nil {
		return nil, err
	}

	return parseResult(text)
}

func (p *GeminiProvider) generateWithRetry(ctx context.Context, payload []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * p.backoffBase
			select {
			case <-ctx.Done():
				return "", p.wrapCtxErr(ctx.Err())
			case <-time.After(backoff):
			}
		}

		text, retryable, err := p.generateOnce(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", p.wrapCtxErr(ctx.Err())
		}
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (p *GeminiProvider) generateOnce(ctx context.Context, payload []byte) (string, bool, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", true, err
	}

	if res.StatusCode != http.StatusOK {
		// 503 means the model is overloaded, 429 means we are throttled.
		retryable := res.StatusCode == http.StatusServiceUnavailable ||
			res.StatusCode == http.StatusTooManyRequests ||
			res.StatusCode >= 500
		return "", retryable, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			truncateBody(resBody),
		)
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return "", false, err
	}
	if len(geminiRes.Candidates) == 0 || geminiRes.Candidates[0].Content == nil ||
		len(geminiRes.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("%w: empty candidates", apperrors.ErrSummaryParseError)
	}
	return geminiRes.Candidates[0].Content.Parts[0].Text, false, nil
}

func (p *GeminiProvider) wrapCtxErr(err error) error {
	if err == context.DeadlineExceeded {
		return apperrors.ErrSummarizationTimeout
	}
	return err
}

// parseResult strips the ```json fences models wrap around structured
// output, then decodes the summary payload.
func parseResult(text string) (*Result, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSummaryParseError, err)
	}
	if result.Content == "" {
		return nil, fmt.Errorf("%w: missing content field", apperrors.ErrSummaryParseError)
	}
	return &result, nil
}

func truncateBody(b []byte) string {
	if len(b) > 512 {
		return string(b[:512]) + "..."
	}
	return string(b)
}
