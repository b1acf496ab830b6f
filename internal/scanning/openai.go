package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements the Recognizer interface against any OpenAI-compatible vision endpoint
type OpenAI struct {
	client *openai.Client
	model  string
	mode   Mode
}

// NewOpenAI creates an OpenAI Recognizer. baseURL may point at a compatible gateway.
func NewOpenAI(apiKey, baseURL, modelName string, mode Mode) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
		mode:   mode,
	}, nil
}

// Recognize sends the document as a data URL image
func (o *OpenAI) Recognize(data []byte, contentType string) (*Recognition, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pngData, err := toPNG(data, contentType)
	if err != nil {
		return nil, ocrFailure("preparing image", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: promptFor(o.mode)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}
	if o.mode == ModeStructured {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, ocrFailure("calling openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &OcrError{Reason: "no choices from openai"}
	}
	return finish(resp.Choices[0].Message.Content, o.mode)
}

// Close is a no-op; the client holds no connections of its own
func (o *OpenAI) Close() error {
	return nil
}
