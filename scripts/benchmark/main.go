package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/revimg/models"
)

var (
	apiURL = flag.String("api-url", "http://localhost:8080", "revimg API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "number of runs per image")
	pages  = flag.Int("pages", 1, "results pages to request per run (0..pages-1)")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Sample images with many known copies on the web.
var testImages = []struct {
	Label string
	URL   string
}{
	{"Logo", "https://go.dev/images/go-logo-blue.svg"},
	{"Photo", "https://upload.wikimedia.org/wikipedia/commons/3/3a/Cat03.jpg"},
	{"Painting", "https://upload.wikimedia.org/wikipedia/commons/e/ec/Mona_Lisa%2C_by_Leonardo_da_Vinci%2C_from_C2RMF_retouched.jpg"},
}

type runResult struct {
	Run       int    `json:"run"`
	Page      int    `json:"page"`
	LatencyMs int64  `json:"latency_ms"`
	ServerMs  int64  `json:"server_ms"`
	Results   int    `json:"results"`
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

type imageResult struct {
	Label string      `json:"label"`
	URL   string      `json:"url"`
	Runs  []runResult `json:"runs"`
}

type benchmarkReport struct {
	Timestamp string        `json:"timestamp"`
	APIURL    string        `json:"api_url"`
	Runs      int           `json:"runs_per_image"`
	Pages     int           `json:"pages_per_run"`
	Results   []imageResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== revimg benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs:      %d x %d page(s)\n", *runs, *pages)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintln(os.Stderr, "Start it with: revimg serve")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	report := benchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		APIURL:    *apiURL,
		Runs:      *runs,
		Pages:     *pages,
	}

	for _, img := range testImages {
		fmt.Printf("[%s] %s\n", img.Label, img.URL)
		ir := imageResult{Label: img.Label, URL: img.URL}
		for i := 1; i <= *runs; i++ {
			for p := 0; p < *pages; p++ {
				rr := searchOnce(client, img.URL, p)
				rr.Run = i
				if rr.Success {
					fmt.Printf("  run %d page %d: %d results in %dms\n", i, p, rr.Results, rr.LatencyMs)
				} else {
					fmt.Printf("  run %d page %d: FAILED [%s] %s\n", i, p, rr.ErrorCode, rr.Error)
				}
				ir.Runs = append(ir.Runs, rr)
			}
		}
		report.Results = append(report.Results, ir)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func searchOnce(client *http.Client, imageURL string, page int) runResult {
	rr := runResult{Page: page}

	body, err := json.Marshal(models.SearchByURLRequest{ImageURL: imageURL, Page: page})
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/search/url", bytes.NewReader(body))
	if err != nil {
		rr.Error = err.Error()
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.ServerMs = sr.Timing.TotalMs
	rr.Success = sr.Success
	rr.Results = sr.Total
	if sr.Error != nil {
		rr.ErrorCode = sr.Error.Code
		rr.Error = sr.Error.Message
	}
	return rr
}

// percentile returns the p-th percentile (0..100) of ms, nearest rank.
func percentile(ms []int64, p float64) int64 {
	if len(ms) == 0 {
		return 0
	}
	sorted := append([]int64(nil), ms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p/100*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printTable(results []imageResult) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Image\tOK\tp50\tp95\tAvg Results\n")
	fmt.Fprintf(w, "─────\t──\t───\t───\t───────────\n")

	for _, r := range results {
		var latencies []int64
		total := 0
		for _, run := range r.Runs {
			if run.Success {
				latencies = append(latencies, run.LatencyMs)
				total += run.Results
			}
		}
		if len(latencies) == 0 {
			fmt.Fprintf(w, "%s\t0/%d\t-\t-\t-\n", r.Label, len(r.Runs))
			continue
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%dms\t%dms\t%.1f\n",
			r.Label, len(latencies), len(r.Runs),
			percentile(latencies, 50), percentile(latencies, 95),
			float64(total)/float64(len(latencies)),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
