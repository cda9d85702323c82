// Package ai holds the optional language-model collaborator used to read
// product details out of protocol text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// Client sends a prompt and returns the raw text of the reply.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse is returned when the model produced no text part.
var ErrEmptyResponse = errors.New("model returned no text")

// ProductSystemPrompt frames every product-info request.
const ProductSystemPrompt = "You extract product details from pharmaceutical process validation protocols. " +
	"Reply with one JSON object and nothing else. Use an empty string for anything the text does not state."

// Gemini is a Client backed by a Vertex AI generative model.
type Gemini struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewGemini connects to Vertex AI and configures the named model for JSON output.
func NewGemini(ctx context.Context, projectID, region, modelName string) (*Gemini, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewGemini: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ProductSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &Gemini{model: model, baseClient: baseClient}, nil
}

// Generate implements Client.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.baseClient != nil {
		return g.baseClient.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
