package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/PoluyanbIch/triviabot/config"
)

// GistLeaderboardService stores the leaderboard as a JSON file in a GitHub Gist.
type GistLeaderboardService struct {
	gistID      string
	githubToken string
	apiURL      string
	filename    string
	client      *http.Client

	// serializes read-modify-write cycles from this process
	mu sync.Mutex
}

func NewGistLeaderboardService(cfg config.Gist) *GistLeaderboardService {
	filename := cfg.File
	if filename == "" {
		filename = "leaderboard.json"
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	return &GistLeaderboardService{
		gistID:      cfg.ID,
		githubToken: cfg.Token,
		apiURL:      strings.TrimRight(apiURL, "/"),
		filename:    filename,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (gs *GistLeaderboardService) gistURL() string {
	return fmt.Sprintf("%s/gists/%s", gs.apiURL, gs.gistID)
}

func (gs *GistLeaderboardService) load(ctx context.Context) ([]LeaderboardEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.gistURL(), nil)
	if err != nil {
		return nil, err
	}
	if gs.githubToken != "" {
		req.Header.Set("Authorization", "token "+gs.githubToken)
	}

	resp, err := gs.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load gist: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var gist struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}

	entries := make([]LeaderboardEntry, 0)
	if file, exists := gist.Files[gs.filename]; exists && file.Content != "" {
		if err := json.Unmarshal([]byte(file.Content), &entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", gs.filename, err)
		}
	}
	return entries, nil
}

func (gs *GistLeaderboardService) save(ctx context.Context, entries []LeaderboardEntry) error {
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"files": map[string]interface{}{
			gs.filename: map[string]interface{}{
				"content": string(content),
			},
		},
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, gs.gistURL(), bytes.NewReader(jsonPayload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+gs.githubToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := gs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save gist: HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func (gs *GistLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	entries, err := gs.load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading leaderboard: %w", err)
	}

	entries, stored := mergeEntry(entries, entry)
	if !stored {
		return false, nil
	}

	if err := gs.save(ctx, entries); err != nil {
		return false, fmt.Errorf("saving leaderboard: %w", err)
	}
	return true, nil
}

func (gs *GistLeaderboardService) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, err := gs.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	return topN(entries, limit), nil
}

func (gs *GistLeaderboardService) GetPlayerPosition(ctx context.Context, playerID string) (int, *LeaderboardEntry, error) {
	all, err := gs.GetTop(ctx, 0)
	if err != nil {
		return -1, nil, err
	}
	pos, entry := positionOf(all, playerID)
	return pos, entry, nil
}
