package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/phishing-detector/internal/utils"
)

// ContentGenerator is the part of a Gemini model the scorer uses
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiScorer implements core.ProbabilityScorer using Google Gemini
type GeminiScorer struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiScorer creates a new Gemini scorer
func NewGeminiScorer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiScorer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	scorer := newGeminiScorer(model, modelName, maxBodySize, logger, textProcessor)
	scorer.client = client
	return scorer, nil
}

func newGeminiScorer(model ContentGenerator, modelName string, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiScorer {
	return &GeminiScorer{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (c *GeminiScorer) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Score asks the Gemini model for the phishing probability of body
func (c *GeminiScorer) Score(ctx context.Context, body string) (float64, error) {
	prompt := utils.BuildPhishingPrompt(c.textProcessor.ProcessText(body, c.maxBodySize))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0, fmt.Errorf("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	reply, err := utils.ParseProbabilityReply(text.String())
	if err != nil {
		return 0, fmt.Errorf("failed to parse Gemini reply: %w", err)
	}

	c.logger.Debug("Gemini scored email",
		zap.String("model", c.modelName),
		zap.Float64("probability", *reply.Probability),
		zap.String("explanation", reply.Explanation))

	return *reply.Probability, nil
}
