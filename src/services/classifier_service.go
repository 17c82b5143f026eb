package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"golang.org/x/oauth2"
)

var firstInteger = regexp.MustCompile(`\d+`)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ClassifierService asks an OpenAI-compatible chat model how many coupons a
// year a free-text frequency describes. The answer is not validated here.
type ClassifierService struct {
	endpoint string
	model    string
	client   *sourceClient
}

func NewClassifierService(baseURL, model, apiKey string, opts ClientOptions) *ClassifierService {
	c := newSourceClient("classifier", opts, map[string]string{"Content-Type": "application/json"})
	// Bearer auth on top of the rate-limited client's transport.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	authed.Timeout = c.httpClient.Timeout
	c.httpClient = authed

	return &ClassifierService{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		model:    model,
		client:   c,
	}
}

func frequencyPrompt(text string) string {
	return fmt.Sprintf("A bond's interest payment frequency is described as %q. "+
		"How many interest payments does the bond make per year? "+
		"Reply with a single integer: 12 for monthly, 4 for quarterly, 3 for three times a year, 2 for semi-annual, 1 for annual, 0 if interest is paid only at maturity.", text)
}

func (s *ClassifierService) Classify(ctx context.Context, securityID int64, text string) (int, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       s.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: "You classify bond coupon frequencies. Answer with digits only."},
			{Role: "user", Content: frequencyPrompt(text)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("encoding classifier request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("building classifier request: %w", err)
	}

	body, err := s.client.do(req)
	if err != nil {
		return 0, err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: decoding classifier reply: %v", models.ErrClassificationFailure, err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("%w: classifier error %s: %s", models.ErrExternalSource, resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("%w: classifier reply has no choices", models.ErrClassificationFailure)
	}
	answer := resp.Choices[0].Message.Content
	f, err := ParseFrequencyAnswer(answer)
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Debug("Classifier answered", "securityID", securityID, "text", text, "answer", answer, "frequency", f)
	return f, nil
}

// ParseFrequencyAnswer extracts the first integer of a model reply.
func ParseFrequencyAnswer(answer string) (int, error) {
	m := firstInteger.FindString(answer)
	if m == "" {
		return 0, fmt.Errorf("%w: no integer in reply %q", models.ErrClassificationFailure, answer)
	}
	f, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrClassificationFailure, err)
	}
	return f, nil
}
