package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/goosewin/codeagent/internal/backend"
	"github.com/goosewin/codeagent/internal/config"
)

// Name is the registry name of the chat-completions backend.
const Name = "openai"

type Options struct {
	APIKey       string
	Endpoint     string
	Model        string
	SystemPrompt string
	HTTPClient   *http.Client
}

type Backend struct {
	apiKey       string
	endpoint     string
	model        string
	systemPrompt string
	client       *http.Client
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// chatResponse uses pointers so a null or missing choice, message or
// content is told apart from an empty string.
type chatResponse struct {
	Choices []*struct {
		Message *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var _ backend.Backend = (*Backend)(nil)

func init() {
	if err := backend.Register(Name, func(settings config.Settings) (backend.Backend, error) {
		return New(Options{
			APIKey:       settings.OpenAIKey,
			Endpoint:     settings.OpenAIEndpoint,
			Model:        settings.OpenAIModel,
			SystemPrompt: settings.OpenAISystemPrompt,
		})
	}); err != nil {
		panic(err)
	}
}

// New builds a chat-completions backend. An empty API key leaves the
// backend unconfigured.
func New(opts Options) (*Backend, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for %s", backend.ErrNotConfigured, Name)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = config.DefaultOpenAIEndpoint
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	systemPrompt := opts.SystemPrompt
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = config.DefaultOpenAISystemPrompt
	}

	// No client timeout: a stalled request blocks until the caller's
	// context is cancelled.
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Backend{
		apiKey:       key,
		endpoint:     endpoint,
		model:        model,
		systemPrompt: systemPrompt,
		client:       client,
	}, nil
}

func (b *Backend) Name() string {
	return Name
}

func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(chatRequest{
		Model: b.model,
		Messages: []message{
			{Role: "system", Content: b.systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", &backend.Error{Backend: Name, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &backend.Error{Backend: Name, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	log.Debug().Str("endpoint", b.endpoint).Str("model", b.model).Msg("sending chat completion")

	res, err := b.client.Do(req)
	if err != nil {
		return "", &backend.Error{Backend: Name, Err: fmt.Errorf("request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &backend.Error{Backend: Name, StatusCode: res.StatusCode}
	}

	var resp chatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return "", &backend.Error{Backend: Name, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &backend.Error{Backend: Name, Err: errors.New("no choices in response")}
	}
	first := resp.Choices[0]
	switch {
	case first == nil:
		return "", &backend.Error{Backend: Name, Err: errors.New("first choice is null")}
	case first.Message == nil:
		return "", &backend.Error{Backend: Name, Err: errors.New("first choice has no message")}
	case first.Message.Content == nil:
		return "", &backend.Error{Backend: Name, Err: errors.New("first choice has no content")}
	}

	return *first.Message.Content, nil
}
