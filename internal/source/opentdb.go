package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PoluyanbIch/triviabot/internal/quiz"
	"github.com/rs/zerolog/log"
)

// Open Trivia DB response codes.
const (
	codeSuccess      = 0
	codeNoResults    = 1
	codeInvalidParam = 2
	codeRateLimit    = 5
)

type OpenTDB struct {
	baseURL    string
	category   int
	difficulty string
	kind       string
	client     *http.Client
}

type OpenTDBOption func(*OpenTDB)

func WithCategory(id int) OpenTDBOption {
	return func(o *OpenTDB) { o.category = id }
}

func WithDifficulty(d string) OpenTDBOption {
	return func(o *OpenTDB) { o.difficulty = d }
}

// WithType restricts questions to "multiple" or "boolean".
func WithType(t string) OpenTDBOption {
	return func(o *OpenTDB) { o.kind = t }
}

func WithHTTPClient(c *http.Client) OpenTDBOption {
	return func(o *OpenTDB) { o.client = c }
}

func NewOpenTDB(baseURL string, timeout time.Duration, opts ...OpenTDBOption) *OpenTDB {
	o := &OpenTDB{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Type             string   `json:"type"`
		Difficulty       string   `json:"difficulty"`
		Category         string   `json:"category"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

func (o *OpenTDB) requestURL(amount int) (string, error) {
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse opentdb url: %w", err)
	}

	q := u.Query()
	q.Set("amount", strconv.Itoa(amount))
	if o.category > 0 {
		q.Set("category", strconv.Itoa(o.category))
	}
	if o.difficulty != "" {
		q.Set("difficulty", o.difficulty)
	}
	if o.kind != "" {
		q.Set("type", o.kind)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (o *OpenTDB) Fetch(ctx context.Context, amount int) ([]quiz.Record, error) {
	endpoint, err := o.requestURL(amount)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opentdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("opentdb: HTTP %d: %w", resp.StatusCode, quiz.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opentdb: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload openTDBResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode opentdb response: %w", err)
	}

	switch payload.ResponseCode {
	case codeSuccess:
	case codeRateLimit:
		return nil, fmt.Errorf("opentdb: response code %d: %w", payload.ResponseCode, quiz.ErrRateLimited)
	case codeNoResults:
		return nil, fmt.Errorf("opentdb: not enough questions for the query (amount %d)", amount)
	case codeInvalidParam:
		return nil, fmt.Errorf("opentdb: invalid parameter in %s", endpoint)
	default:
		return nil, fmt.Errorf("opentdb: response code %d", payload.ResponseCode)
	}

	records := make([]quiz.Record, 0, len(payload.Results))
	for _, r := range payload.Results {
		incorrect := make([]string, len(r.IncorrectAnswers))
		for i, a := range r.IncorrectAnswers {
			incorrect[i] = html.UnescapeString(a)
		}
		records = append(records, quiz.Record{
			Prompt:           html.UnescapeString(r.Question),
			CorrectAnswer:    html.UnescapeString(r.CorrectAnswer),
			IncorrectAnswers: incorrect,
			Category:         html.UnescapeString(r.Category),
			Difficulty:       r.Difficulty,
		})
	}

	log.Debug().Int("amount", amount).Int("received", len(records)).Msg("Fetched questions from opentdb")
	return records, nil
}
