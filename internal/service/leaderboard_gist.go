package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	githubAPIURL = "https://api.github.com"
	gistTimeout  = 10 * time.Second
)

// GistStore keeps each key as a "<key>.json" file inside a GitHub Gist.
type GistStore struct {
	gistID      string
	githubToken string
	baseURL     string
	client      *http.Client
}

func NewGistStore(gistID, githubToken string) *GistStore {
	return &GistStore{
		gistID:      gistID,
		githubToken: githubToken,
		baseURL:     githubAPIURL,
		client:      &http.Client{Timeout: gistTimeout},
	}
}

// WithBaseURL points the store at another GitHub API host.
func (gs *GistStore) WithBaseURL(baseURL string, client *http.Client) *GistStore {
	gs.baseURL = baseURL
	if client != nil {
		gs.client = client
	}
	return gs
}

func gistFilename(key string) string {
	return key + ".json"
}

func (gs *GistStore) gistURL() string {
	return fmt.Sprintf("%s/gists/%s", gs.baseURL, gs.gistID)
}

func (gs *GistStore) Get(ctx context.Context, key string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.gistURL(), nil)
	if err != nil {
		return "", false, err
	}
	if gs.githubToken != "" {
		req.Header.Set("Authorization", "token "+gs.githubToken)
	}

	resp, err := gs.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}

	var gist struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &gist); err != nil {
		return "", false, fmt.Errorf("decode gist: %w", err)
	}

	file, exists := gist.Files[gistFilename(key)]
	if !exists {
		return "", false, nil
	}
	return file.Content, true, nil
}

func (gs *GistStore) Set(ctx context.Context, key, value string) error {
	payload := map[string]interface{}{
		"files": map[string]interface{}{
			gistFilename(key): map[string]interface{}{
				"content": value,
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
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
