package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newscast/ingestion"
)

// Client is a thin HTTP client for the newscast API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client against the server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetStatus fetches the current pipeline snapshot.
func (c *Client) GetStatus() (*ingestion.Status, error) {
	resp, err := c.http.Get(c.baseURL + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status ingestion.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StartDiscovery triggers a discovery run.
func (c *Client) StartDiscovery() error {
	resp, err := c.http.Post(c.baseURL+"/api/discover", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("discover endpoint returned %d", resp.StatusCode)
	}
	return nil
}
