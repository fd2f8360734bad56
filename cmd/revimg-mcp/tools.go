package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/revimg/models"
)

// apiClient talks to a running revimg HTTP service.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// searchURL posts to /api/v1/search/url.
func (a *apiClient) searchURL(ctx context.Context, imageURL string, page int) (*models.SearchResponse, error) {
	body, err := json.Marshal(models.SearchByURLRequest{ImageURL: imageURL, Page: page})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return a.post(ctx, "/api/v1/search/url", "application/json", bytes.NewReader(body))
}

// searchFile uploads path to /api/v1/search/file.
func (a *apiClient) searchFile(ctx context.Context, path string, page int) (*models.SearchResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := mw.WriteField("page", strconv.Itoa(page)); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	return a.post(ctx, "/api/v1/search/file", mw.FormDataContentType(), &buf)
}

func (a *apiClient) post(ctx context.Context, path, contentType string, body io.Reader) (*models.SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.baseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out models.SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

func handleSearchURL(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		imageURL, err := request.RequireString("image_url")
		if err != nil {
			return mcp.NewToolResultError("image_url is required"), nil
		}
		page := request.GetInt("page", 0)

		resp, err := api.searchURL(ctx, imageURL, page)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(resp), nil
	}
}

func handleSearchFile(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}
		page := request.GetInt("page", 0)

		resp, err := api.searchFile(ctx, path, page)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toolResult(resp), nil
	}
}

func toolResult(resp *models.SearchResponse) *mcp.CallToolResult {
	if !resp.Success {
		msg := "search failed"
		if resp.Error != nil {
			msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultText(formatResults(resp))
}

// formatResults renders one block per match.
func formatResults(resp *models.SearchResponse) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No matches on page %d.", resp.Page)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d matches on page %d\n", resp.Total, resp.Page)
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "\n[%d] %s\n    page: %s\n    size: %sx%s\n", i+1, r.Image, r.Page, r.Width, r.Height)
	}
	return sb.String()
}
