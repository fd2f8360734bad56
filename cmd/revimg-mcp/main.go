package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("REVIMG_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("REVIMG_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "REVIMG_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"revimg",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	api := &apiClient{
		baseURL: apiURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
	}

	byURLTool := mcp.NewTool("reverse_image_search_url",
		mcp.WithDescription("Find pages on the web that contain an image, given the image's URL. Returns the matching image URLs, the pages they appear on and their pixel dimensions."),
		mcp.WithString("image_url",
			mcp.Required(),
			mcp.Description("Publicly reachable URL of the image to search for"),
		),
		mcp.WithNumber("page",
			mcp.Description("Zero-based results page (default: 0)"),
			mcp.Min(0),
		),
	)
	s.AddTool(byURLTool, handleSearchURL(api))

	byFileTool := mcp.NewTool("reverse_image_search_file",
		mcp.WithDescription("Find pages on the web that contain an image stored on the local disk. The file is uploaded to the revimg service."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the local image file"),
		),
		mcp.WithNumber("page",
			mcp.Description("Zero-based results page (default: 0)"),
			mcp.Min(0),
		),
	)
	s.AddTool(byFileTool, handleSearchFile(api))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
