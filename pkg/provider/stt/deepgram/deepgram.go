// Package deepgram provides an stt.Transcriber backed by Deepgram's
// pre-recorded audio API.
//
// The file is posted as the raw request body to /v1/listen with the model and
// language as query parameters. Deepgram detects the container from the
// bytes, so no conversion happens here.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/signcascade/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://api.deepgram.com"
	defaultModel    = "nova-3"
	defaultLanguage = "en"
	defaultTimeout  = 5 * time.Minute
)

var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring the Transcriber.
type Option func(*Transcriber)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithLanguage sets the BCP-47 language code (e.g. "en", "de-DE").
func WithLanguage(language string) Option {
	return func(t *Transcriber) { t.language = language }
}

// WithBaseURL points the Transcriber at a different API host. Used in tests.
func WithBaseURL(u string) Option {
	return func(t *Transcriber) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) { t.httpClient = c }
}

// Transcriber implements stt.Transcriber.
type Transcriber struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// New creates a Transcriber. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	t := &Transcriber{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// buildURL returns the /v1/listen URL. Deepgram's punctuation is requested
// because it is cheaper than restoring it afterwards.
func (t *Transcriber) buildURL() string {
	q := url.Values{}
	q.Set("model", t.model)
	if t.language != "" {
		q.Set("language", t.language)
	}
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	return t.baseURL + "/v1/listen?" + q.Encode()
}

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if err := stt.CheckFormat(audio.Filename); err != nil {
		return "", err
	}
	if audio.Data == nil {
		return "", errors.New("deepgram: audio has no data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.buildURL(), audio.Data)
	if err != nil {
		return "", fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+t.apiKey)
	ct := audio.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return parseResponse(resp.Body)
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// parseResponse returns the first alternative of the first channel.
func parseResponse(r io.Reader) (string, error) {
	var lr listenResponse
	if err := json.NewDecoder(r).Decode(&lr); err != nil {
		return "", fmt.Errorf("deepgram: parse response: %w", err)
	}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(lr.Results.Channels[0].Alternatives[0].Transcript), nil
}
