package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/logging"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com"

// GeminiOptions configures the Gemini client.
type GeminiOptions struct {
	// Endpoint overrides the API base URL. Used in tests.
	Endpoint string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	// Logger receives request-level debug logs.
	Logger logging.Logger
}

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	logger     logging.Logger
}

// NewGeminiClient creates a client for the given model.
func NewGeminiClient(apiKey, model string, opts *GeminiOptions) *GeminiClient {
	if opts == nil {
		opts = &GeminiOptions{}
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No client-level timeout; callers bound each request with ctx.
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the model identifier used for requests.
func (c *GeminiClient) Model() string {
	return c.model
}

// Wire types for the generateContent API.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate runs one inference call and returns the model's text output.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	parts := []part{{Text: req.Prompt}}
	if req.Audio != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: req.Audio.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Audio.Data),
		}})
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Surface the ctx error so deadline and cancellation classify
		// correctly instead of as transport noise.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("inference call completed",
		logging.F("model", c.model),
		logging.F("status", resp.StatusCode),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", cverrors.NewMalformedResponse("inference", "response is not valid JSON", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", cverrors.NewMalformedResponse("inference", "response contains no candidates", nil)
	}

	var sb strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// apiError maps a non-200 response to an error Classify understands.
func apiError(status int, body []byte) error {
	var genResp generateResponse
	message := string(body)
	if json.Unmarshal(body, &genResp) == nil && genResp.Error != nil {
		message = genResp.Error.Message
		if genResp.Error.Status != "" {
			message = genResp.Error.Status + ": " + message
		}
	}
	return fmt.Errorf("inference API error (status %d): %s", status, message)
}
