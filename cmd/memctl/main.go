// memctl is a small client for a running memorai server.
//
//	memctl add "learned pgx arrays" -tags go,db -source cli
//	memctl search "postgres tips" -limit 3
//	memctl list -tag go
//	memctl stats
//	memctl profile
//	memctl delete <id>
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type memoryView struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	Source    *string   `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type searchResultView struct {
	Memory memoryView `json:"memory"`
	Score  float32    `json:"score"`
}

type labelCountView struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type statsView struct {
	TotalMemories int              `json:"total_memories"`
	Tags          []labelCountView `json:"tags"`
	Sources       []labelCountView `json:"sources"`
}

type profileView struct {
	Profile     string `json:"profile"`
	MemoryCount int    `json:"memory_count"`
}

type errorView struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "add":
		err = runAdd(args)
	case "list":
		err = runList(args)
	case "search":
		err = runSearch(args)
	case "delete":
		err = runDelete(args)
	case "stats":
		err = runStats(args)
	case "profile":
		err = runProfile(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "memctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: memctl <add|list|search|delete|stats|profile> [flags]")
}

func baseFlags(fs *flag.FlagSet) *string {
	fallback := os.Getenv("MEMORAI_ADDR")
	if fallback == "" {
		fallback = "http://localhost:8484"
	}
	return fs.String("addr", fallback, "base URL of the memorai server")
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	addr := baseFlags(fs)
	tags := fs.String("tags", "", "comma-separated tags")
	source := fs.String("source", "", "origin label")
	text, rest := takeText(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text argument required")
	}

	body := map[string]any{"text": text, "tags": splitTags(*tags)}
	if *source != "" {
		body["source"] = *source
	}

	var created memoryView
	if err := call(http.MethodPost, *addr+"/v1/memories", body, &created); err != nil {
		return err
	}
	fmt.Printf("stored %s\n", created.ID)
	fmt.Printf("  text: %s\n", created.Text)
	if len(created.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(created.Tags, ", "))
	}
	if created.Source != nil {
		fmt.Printf("  source: %s\n", *created.Source)
	}
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	addr := baseFlags(fs)
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 20, "results per page (max 100)")
	tag := fs.String("tag", "", "filter by tag")
	source := fs.String("source", "", "filter by source")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(*page))
	params.Set("per_page", strconv.Itoa(*perPage))
	if *tag != "" {
		params.Set("tag", *tag)
	}
	if *source != "" {
		params.Set("source", *source)
	}

	var memories []memoryView
	if err := call(http.MethodGet, *addr+"/v1/memories?"+params.Encode(), nil, &memories); err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("no memories")
		return nil
	}
	for _, m := range memories {
		line := fmt.Sprintf("%s  %s", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Text)
		if len(m.Tags) > 0 {
			line += "  [" + strings.Join(m.Tags, ",") + "]"
		}
		fmt.Println(line)
		fmt.Printf("  id: %s\n", m.ID)
	}
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	addr := baseFlags(fs)
	limit := fs.Int("limit", 5, "max results (max 50)")
	query, rest := takeText(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query argument required")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(*limit))

	var results []searchResultView
	if err := call(http.MethodGet, *addr+"/v1/search?"+params.Encode(), nil, &results); err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no memories found")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, r.Memory.Text)
		if len(r.Memory.Tags) > 0 {
			fmt.Printf("   tags: %s\n", strings.Join(r.Memory.Tags, ", "))
		}
	}
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	addr := baseFlags(fs)
	id, rest := takeText(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id argument required")
	}

	var removed memoryView
	if err := call(http.MethodDelete, *addr+"/v1/memories/"+url.PathEscape(id), nil, &removed); err != nil {
		return err
	}
	fmt.Printf("deleted %s: %s\n", removed.ID, removed.Text)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	addr := baseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var stats statsView
	if err := call(http.MethodGet, *addr+"/v1/stats", nil, &stats); err != nil {
		return err
	}
	fmt.Printf("total memories: %d\n", stats.TotalMemories)
	if len(stats.Tags) > 0 {
		fmt.Println("top tags:")
		for i, t := range stats.Tags {
			if i == 10 {
				break
			}
			fmt.Printf("  %s (%d)\n", t.Label, t.Count)
		}
	}
	if len(stats.Sources) > 0 {
		fmt.Println("top sources:")
		for i, s := range stats.Sources {
			if i == 10 {
				break
			}
			fmt.Printf("  %s (%d)\n", s.Label, s.Count)
		}
	}
	return nil
}

func runProfile(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	addr := baseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var out profileView
	if err := call(http.MethodGet, *addr+"/v1/profile", nil, &out); err != nil {
		return err
	}
	fmt.Printf("profile (from %d memories):\n\n%s\n", out.MemoryCount, out.Profile)
	return nil
}

// takeText pulls the first non-flag argument so "memctl add \"text\" -tags x"
// parses naturally.
func takeText(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func call(method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr errorView
		if decodeErr := json.NewDecoder(res.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned status %d", res.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
