package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/use-agent/revimg/models"
)

func bufferedCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestOutputSearchTable(t *testing.T) {
	cmd, buf := bufferedCmd()
	outputSearchTable(cmd, []models.SearchResult{
		{Image: "https://x.test/a.jpg", Page: "https://x.test/p", Width: models.Px(640), Height: models.Px(480)},
		{Image: "https://x.test/b.jpg", Width: models.ParseDimension(""), Height: models.Px(10)},
	})
	out := buf.String()

	for _, want := range []string{
		"[1] https://x.test/a.jpg (640x480)",
		"Page: https://x.test/p",
		"[2] https://x.test/b.jpg (NaNx10)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Page:") != 1 {
		t.Errorf("empty page URL should not be printed:\n%s", out)
	}
}

func TestOutputSearchTable_Empty(t *testing.T) {
	cmd, buf := bufferedCmd()
	outputSearchTable(cmd, nil)
	if got := strings.TrimSpace(buf.String()); got != "No matches found." {
		t.Errorf("output = %q", got)
	}
}

func TestOutputSearchJSON(t *testing.T) {
	cmd, buf := bufferedCmd()
	if err := outputSearchJSON(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty results = %q, want []", got)
	}

	cmd, buf = bufferedCmd()
	err := outputSearchJSON(cmd, []models.SearchResult{{Image: "i", Page: "p", Width: models.Px(1), Height: models.ParseDimension("x")}})
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded[0]["height"] != nil || decoded[0]["width"] != float64(1) {
		t.Errorf("decoded = %v", decoded[0])
	}
}

func TestSearchCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"neither", []string{"search"}, "at least one of the flags"},
		{"both", []string{"search", "--url", "https://x.test/a.jpg", "--file", "a.jpg"}, "none of the others"},
		{"negative page", []string{"search", "--url", "https://x.test/a.jpg", "--page", "-1"}, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			rootCmd.SetOut(buf)
			rootCmd.SetErr(buf)
			rootCmd.SetArgs(tt.args)
			defer func() {
				rootCmd.SetArgs(nil)
				searchURL, searchFile, searchPage = "", "", 0
				for _, name := range []string{"url", "file", "page"} {
					if f := searchCmd.Flags().Lookup(name); f != nil {
						f.Changed = false
					}
				}
			}()

			err := rootCmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
