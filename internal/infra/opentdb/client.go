package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trivia-quiz-service/internal/domain"
)

// DefaultBaseURL is the public Open Trivia DB endpoint.
const DefaultBaseURL = "https://opentdb.com"

// AnyCategory asks for questions from every category.
const AnyCategory = "any"

// Response codes returned by the API alongside HTTP 200.
const (
	codeSuccess   = 0
	codeNoResults = 1
)

// Client fetches multiple-choice questions and categories from the trivia API.
// It performs a single request per call; retrying is left to the player.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type questionsResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []domain.Question `json:"results"`
}

type categoriesResponse struct {
	Categories []domain.Category `json:"trivia_categories"`
}

// FetchQuestions returns count questions for the category id in topic. The topic
// "any" (or an empty one) omits the category filter; a non-numeric topic is
// matched against category names.
func (c *Client) FetchQuestions(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(count))
	params.Set("type", "multiple")

	category, err := c.resolveCategory(ctx, topic)
	if err != nil {
		return nil, err
	}
	if category != "" {
		params.Set("category", category)
	}

	var resp questionsResponse
	if err := c.getJSON(ctx, "/api.php", params, &resp); err != nil {
		return nil, err
	}
	switch resp.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, domain.ErrEmptyResult
	default:
		return nil, fmt.Errorf("%w: response code %d", domain.ErrSourceUnavailable, resp.ResponseCode)
	}
	if len(resp.Results) == 0 {
		return nil, domain.ErrEmptyResult
	}
	return resp.Results, nil
}

// Categories lists the available trivia categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var resp categoriesResponse
	if err := c.getJSON(ctx, "/api_category.php", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

func (c *Client) resolveCategory(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.EqualFold(topic, AnyCategory) {
		return "", nil
	}
	if _, err := strconv.Atoi(topic); err == nil {
		return topic, nil
	}
	categories, err := c.Categories(ctx)
	if err != nil {
		return "", err
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, topic) {
			return strconv.Itoa(cat.ID), nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", domain.ErrEmptyResult, topic)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", domain.ErrSourceUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrSourceUnavailable, path, err)
	}
	return nil
}
