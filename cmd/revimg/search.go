package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/revimg/models"
	"github.com/use-agent/revimg/search"
)

var (
	searchURL     string
	searchFile    string
	searchPage    int
	searchJSON    bool
	searchTimeout time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one reverse image search",
	Long: `Searches for pages containing an image given by --file or --url and
prints the matches. A single headless browser is started for the search.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchURL, "url", "", "URL of the image to search for")
	searchCmd.Flags().StringVar(&searchFile, "file", "", "path of a local image to search for")
	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 0, "zero-based results page")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 2*time.Minute, "overall deadline for the search")
	searchCmd.MarkFlagsMutuallyExclusive("url", "file")
	searchCmd.MarkFlagsOneRequired("url", "file")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if searchPage < 0 {
		return fmt.Errorf("--page must be non-negative, got %d", searchPage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	client := search.Start(cfg)
	defer func() { _ = client.Kill() }()

	var results []models.SearchResult
	var err error
	if searchFile != "" {
		results, err = client.SearchByFile(ctx, searchFile, searchPage)
	} else {
		results, err = client.SearchByURL(ctx, searchURL, searchPage)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []models.SearchResult) error {
	if results == nil {
		results = []models.SearchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []models.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No matches found.")
		return
	}

	for i, r := range results {
		cmd.Printf("  [%d] %s (%sx%s)\n", i+1, r.Image, r.Width, r.Height)
		if r.Page != "" {
			cmd.Printf("      Page: %s\n", r.Page)
		}
	}
}
