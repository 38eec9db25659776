package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/utils"
)

// OpenAIScorer implements core.ProbabilityScorer using OpenAI chat completions
type OpenAIScorer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIScorer creates a new OpenAI scorer
func NewOpenAIScorer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIScorer {
	return &OpenAIScorer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Score asks the OpenAI model for the phishing probability of body
func (c *OpenAIScorer) Score(ctx context.Context, body string) (float64, error) {
	prompt := utils.BuildPhishingPrompt(c.textProcessor.ProcessText(body, c.maxBodySize))

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a phishing detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("empty response from OpenAI")
	}

	reply, err := utils.ParseProbabilityReply(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, fmt.Errorf("failed to parse OpenAI reply: %w", err)
	}

	c.logger.Debug("OpenAI scored email",
		zap.String("model", c.modelName),
		zap.String("completion_id", resp.ID),
		zap.Float64("probability", *reply.Probability),
		zap.String("explanation", reply.Explanation))

	return *reply.Probability, nil
}
