package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcoot/memorymatch/internal/game"
	"github.com/mcoot/memorymatch/internal/protocol"
)

// Health is the admin health response
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Online  int    `json:"online"`
	Rooms   int    `json:"rooms"`
}

// OnlinePlayers is the admin online-players response
type OnlinePlayers struct {
	Count   int                   `json:"count"`
	Players []protocol.PlayerInfo `json:"players"`
}

// Rooms is the admin rooms response
type Rooms struct {
	Count int             `json:"count"`
	Rooms []game.Snapshot `json:"rooms"`
}

// APIError is the error body returned by the admin API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// APIClient reads the admin HTTP API
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates an admin API client rooted at baseURL
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health returns the server health
func (c *APIClient) Health() (Health, error) {
	var h Health
	return h, c.get("/health", &h)
}

// OnlinePlayers returns every authenticated player
func (c *APIClient) OnlinePlayers() (OnlinePlayers, error) {
	var p OnlinePlayers
	return p, c.get("/players/online", &p)
}

// Rooms returns the matches in progress
func (c *APIClient) Rooms() (Rooms, error) {
	var r Rooms
	return r, c.get("/rooms", &r)
}

// Room returns one match in progress
func (c *APIClient) Room(id string) (game.Snapshot, error) {
	var s game.Snapshot
	return s, c.get("/rooms/"+url.PathEscape(id), &s)
}

func (c *APIClient) get(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var wrapped struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Code != "" {
			wrapped.Error.Status = resp.StatusCode
			return &wrapped.Error
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
