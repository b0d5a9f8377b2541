// Package client is the agent-side consumer of the wearlog server API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wearlog/internal/models"
)

// Client submits wear/wash batches and reads the item catalog.
type Client struct {
	baseURL  string
	apiKey   string
	apiExtra string
	http     *http.Client
}

func New(baseURL, apiKey, apiExtra string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		apiExtra: apiExtra,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type recordRequest struct {
	ClothesIDs []string `json:"clothesIds"`
	Date       string   `json:"date,omitempty"`
}

// SubmitWear records one wear for each of the given items.
func (c *Client) SubmitWear(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error) {
	return c.submit(ctx, "/api/v1/wear", clothesIDs, date)
}

// SubmitWash records one wash for each of the given items.
func (c *Client) SubmitWash(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error) {
	return c.submit(ctx, "/api/v1/wash", clothesIDs, date)
}

func (c *Client) submit(ctx context.Context, path string, clothesIDs []string, date string) (*models.SyncResult, error) {
	body, err := json.Marshal(recordRequest{ClothesIDs: clothesIDs, Date: date})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post %s: %s", path, readError(resp))
	}

	var result models.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// ListItems returns the active item catalog for the local mirror.
func (c *Client) ListItems(ctx context.Context) ([]models.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/items", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get items: %s", readError(resp))
	}

	var payload struct {
		Items []models.Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return payload.Items, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var msg struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &msg) == nil && msg.Error != "" {
		return fmt.Sprintf("%s: %s", resp.Status, msg.Error)
	}
	return resp.Status
}
