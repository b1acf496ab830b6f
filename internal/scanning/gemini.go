package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-pro"

// Gemini implements the Recognizer interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	mode   Mode
}

func geminiModelName(name string) string {
	if name == "" {
		return DefaultGeminiModel
	}
	return name
}

// NewGemini creates a new Gemini Recognizer instance
func NewGemini(apiKey, modelName string, mode Mode) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(geminiModelName(modelName))
	model.SetTemperature(0)

	return &Gemini{
		client: client,
		model:  model,
		mode:   mode,
	}, nil
}

// Recognize sends the document to Gemini and returns its reading
func (g *Gemini) Recognize(data []byte, contentType string) (*Recognition, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pngData, err := toPNG(data, contentType)
	if err != nil {
		return nil, ocrFailure("preparing image", err)
	}

	// genai.ImageData takes the format suffix, not the MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("png", pngData),
		genai.Text(promptFor(g.mode)),
	)
	if err != nil {
		return nil, ocrFailure("calling gemini", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &OcrError{Reason: "no response from gemini"}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return finish(text.String(), g.mode)
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
