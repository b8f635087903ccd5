package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiTimeout        = 60 * time.Second
)

// GeminiClient talks to the Gemini REST API for both generation and
// embeddings.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
}

var (
	_ Generator = (*GeminiClient)(nil)
	_ Embedder  = (*GeminiClient)(nil)
)

// NewGeminiClient creates a client for the given generation and embedding
// models. Either model may be empty when the client is only used for the
// other purpose.
func NewGeminiClient(apiKey, model, embedModel string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: geminiTimeout},
	}
}

// WithBaseURL points the client at a custom endpoint (for testing).
func (c *GeminiClient) WithBaseURL(baseURL string) *GeminiClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate calls models/{model}:generateContent with prompt as the only user turn.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	var out generateContentResponse
	err := c.post(ctx, c.model+":generateContent", req, &out)
	if err != nil {
		return "", err
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in response")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type embedContentRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed calls models/{embedModel}:embedContent.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedContentRequest{
		Model:   "models/" + c.embedModel,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	var out embedContentResponse
	if err := c.post(ctx, c.embedModel+":embedContent", req, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: empty embedding")
	}
	return out.Embedding.Values, nil
}

func (c *GeminiClient) post(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	_, err = retryRateLimited(ctx, func(ctx context.Context) (struct{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+method, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return struct{}{}, fmt.Errorf("gemini request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, responseError("gemini", resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("decoding gemini response: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}
