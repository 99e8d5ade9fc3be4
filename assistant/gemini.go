package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Prompt is a single request to a hosted model.
type Prompt struct {
	System          string
	Text            string
	MaxOutputTokens int32
}

// Completion is the model output plus what it cost in tokens.
type Completion struct {
	Text         string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
	Model        string
}

// Generator calls a hosted language model once.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (*Completion, error)
}

type modelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	models modelsClient
	model  string
}

// NewGemini creates a Gemini generator for the given API key.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, model), nil
}

func newGemini(models modelsClient, model string) *Gemini {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{models: models, model: model}
}

// Model returns the model name requests are sent to.
func (g *Gemini) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate sends the prompt and returns the joined text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (*Completion, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{MaxOutputTokens: p.MaxOutputTokens}
	if s := strings.TrimSpace(p.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return nil, errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			t := strings.TrimSpace(part.Text)
			if t == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(t)
		}
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return nil, errors.New("gemini api returned empty response")
	}

	c := &Completion{Text: output, Model: g.model}
	if u := resp.UsageMetadata; u != nil {
		c.PromptTokens = int(u.PromptTokenCount)
		c.OutputTokens = int(u.CandidatesTokenCount)
		c.TotalTokens = int(u.TotalTokenCount)
	}
	if c.TotalTokens == 0 {
		c.TotalTokens = c.PromptTokens + c.OutputTokens
	}
	return c, nil
}
