package summarizer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"telemed-recording-be/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merged.webm")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))
	return path
}

func geminiReply(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				},
			},
		},
	})
	return string(body)
}

const validSummaryJSON = `{
	"content": "Patient reported mild headaches.",
	"keyPoints": ["headaches for three days", "no fever"],
	"medications": [{"name": "Ibuprofen", "dosage": "400mg", "instructions": "with food"}],
	"followUpInstructions": "Return in one week if unresolved."
}`

func newTestProvider(url string) *GeminiProvider {
	p := NewGeminiProvider("test-key", "gemini-2.5-flash", 5*time.Second, 3).WithBaseURL(url)
	p.backoffBase = time.Millisecond
	return p
}

func TestGeminiSummarizeParsesStructuredResult(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.NotEmpty(t, req.Contents[0].Parts[0].Text)
		require.NotNil(t, req.Contents[0].Parts[1].InlineData)
		assert.Equal(t, "audio/webm", req.Contents[0].Parts[1].InlineData.MimeType)
		assert.NotEmpty(t, req.Contents[0].Parts[1].InlineData.Data)

		w.Write([]byte(geminiReply(validSummaryJSON)))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	result, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{MeetingId: "m-1"})
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "Patient reported mild headaches.", result.Content)
	assert.Equal(t, []string{"headaches for three days", "no fever"}, result.KeyPoints)
	require.Len(t, result.Medications, 1)
	assert.Equal(t, "Ibuprofen", result.Medications[0].Name)
	assert.Equal(t, "Return in one week if unresolved.", result.FollowUpInstructions)
}

func TestGeminiSummarizeStripsMarkdownFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("```json\n" + validSummaryJSON + "\n```")))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	result, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, "Patient reported mild headaches.", result.Content)
}

func TestGeminiSummarizeMalformedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("I'm sorry, I cannot summarize this audio.")))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	_, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	assert.ErrorIs(t, err, apperrors.ErrSummaryParseError)
}

func TestGeminiSummarizeMissingContentField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply(`{"keyPoints": ["a point"]}`)))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	_, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	assert.ErrorIs(t, err, apperrors.ErrSummaryParseError)
}

func TestGeminiSummarizeRetriesOnOverload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
			return
		}
		w.Write([]byte(geminiReply(validSummaryJSON)))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	result, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.NotEmpty(t, result.Content)
}

func TestGeminiSummarizeGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	_, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeminiSummarizeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	_, err := provider.Summarize(context.Background(), testAudioFile(t), "audio/webm", SourceInfo{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiSummarizeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Summarize(ctx, testAudioFile(t), "audio/webm", SourceInfo{})
	assert.ErrorIs(t, err, apperrors.ErrSummarizationTimeout)
}
