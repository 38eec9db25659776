// Package modelserver scores emails with a locally hosted phishing model
// exposed over HTTP.
package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/utils"
)

const maxResponseSize = 1 << 20

// predictRequest is the batch input of the model server
type predictRequest struct {
	Texts []string `json:"texts"`
}

// predictResponse holds one probability per input text
type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Scorer implements core.ProbabilityScorer against the model server
type Scorer struct {
	url           string
	maxBodySize   int
	httpClient    *http.Client
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewScorer creates a model server scorer. Deadlines come from the caller's
// context.
func NewScorer(url string, maxBodySize int, httpClient *http.Client, textProcessor *utils.TextProcessor, logger *zap.Logger) *Scorer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Scorer{
		url:           url,
		maxBodySize:   maxBodySize,
		httpClient:    httpClient,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Score returns the phishing probability of body
func (s *Scorer) Score(ctx context.Context, body string) (float64, error) {
	text := body
	if s.maxBodySize > 0 {
		text = s.textProcessor.ProcessText(body, s.maxBodySize)
	}

	payload, err := json.Marshal(predictRequest{Texts: []string{text}})
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "model server request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read model server response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errors.Errorf("model server returned status %d", resp.StatusCode)
	}

	var predicted predictResponse
	if err := json.Unmarshal(respBody, &predicted); err != nil {
		return 0, errors.Wrap(err, "failed to unmarshal model server response")
	}
	if len(predicted.Probabilities) != 1 {
		return 0, errors.Errorf("model server returned %d probabilities for 1 text", len(predicted.Probabilities))
	}

	s.logger.Debug("Model server scored email", zap.Float64("probability", predicted.Probabilities[0]))

	return predicted.Probabilities[0], nil
}
