package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const DefaultBaseURL = "https://api.figma.com"

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (Me, error) {
	var me Me
	if err := c.get(ctx, accessToken, "/v1/me", &me); err != nil {
		return Me{}, err
	}
	return me, nil
}

func (c *HTTPClient) File(ctx context.Context, accessToken string, fileKey string) (File, error) {
	var file File
	if err := c.get(ctx, accessToken, "/v1/files/"+url.PathEscape(fileKey), &file); err != nil {
		return File{}, err
	}
	return file, nil
}

func (c *HTTPClient) Nodes(ctx context.Context, accessToken string, fileKey string, nodeId string) (FileNodes, error) {
	var nodes FileNodes
	path := "/v1/files/" + url.PathEscape(fileKey) + "/nodes?ids=" + url.QueryEscape(nodeId)
	if err := c.get(ctx, accessToken, path, &nodes); err != nil {
		return FileNodes{}, err
	}
	return nodes, nil
}

func (c *HTTPClient) get(ctx context.Context, accessToken string, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("figma api %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode figma response: %w", err)
	}
	return nil
}
