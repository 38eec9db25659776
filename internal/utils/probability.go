package utils

import (
	"fmt"
)

// PhishingPrompt asks a language model for a phishing probability. Its
// only %s verb takes the email body.
const PhishingPrompt = `You are a phishing detection system. Estimate the probability that the following email is a phishing attempt.
Respond with a JSON object containing:
- probability: number between 0 and 1 (higher means more likely to be phishing)
- explanation: string (brief reason for the estimate)

Email body:
%s

Respond only with the JSON object and nothing else.`

// ProbabilityReply is the JSON object a language model answers with
type ProbabilityReply struct {
	Probability *float64 `json:"probability"`
	Explanation string   `json:"explanation"`
}

// BuildPhishingPrompt renders the prompt for an already processed body
func BuildPhishingPrompt(body string) string {
	return fmt.Sprintf(PhishingPrompt, body)
}

// ParseProbabilityReply extracts the probability from a model reply
func ParseProbabilityReply(text string) (*ProbabilityReply, error) {
	var reply ProbabilityReply
	if err := ExtractJSONObject(text, &reply); err != nil {
		return nil, err
	}
	if reply.Probability == nil {
		return nil, fmt.Errorf("model reply has no probability")
	}
	return &reply, nil
}
