// Command shadow_compare replays accessibility lookups against the legacy
// scheduler and this service, and reports semantic differences. The legacy
// response shape differs, so comparison is field-by-field rather than
// whole-body: each side's value is pulled out via a dotted JSON path.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type fieldPair struct {
	Name       string
	GoPath     string
	LegacyPath string
}

// The fields whose semantics must survive the port. Window timestamps are
// excluded: the legacy service reports them in local time.
var comparedFields = []fieldPair{
	{Name: "status", GoPath: "data.status", LegacyPath: "accessibilityStatus"},
	{Name: "accessible", GoPath: "data.accessible", LegacyPath: "isAccessible"},
	{Name: "minutes_remaining", GoPath: "data.minutes_remaining", LegacyPath: "minutesRemaining"},
}

type comparison struct {
	ProgressID   string
	GoStatus     int
	LegacyStatus int
	Mismatches   []string
	Err          error
}

func main() {
	var (
		goBase     string
		legacyBase string
		idsPath    string
		timeout    time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080/api/v1", "Go API base URL including prefix")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8081/api", "Legacy scheduler base URL")
	flag.StringVar(&idsPath, "ids", "", "Path to a file with one progress ID per line")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if idsPath == "" {
		log.Fatal("missing required -ids flag")
	}
	ids, err := loadIDs(idsPath)
	if err != nil {
		log.Fatalf("failed to load progress IDs: %v", err)
	}

	client := &http.Client{Timeout: timeout}

	var diffs int
	results := make([]comparison, 0, len(ids))
	for _, id := range ids {
		comp := compareProgress(client, goBase, legacyBase, id)
		if comp.Err != nil || len(comp.Mismatches) > 0 {
			diffs++
		}
		results = append(results, comp)
	}

	printReport(results)
	fmt.Printf("Checked %d records, %d with differences\n", len(ids), diffs)
	if diffs > 0 {
		os.Exit(1)
	}
}

func loadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no progress IDs in %s", path)
	}
	return ids, nil
}

func compareProgress(client *http.Client, goBase, legacyBase, id string) comparison {
	comp := comparison{ProgressID: id}

	goStatus, goBody, err := fetch(client, fmt.Sprintf("%s/progress/%s/accessibility", strings.TrimRight(goBase, "/"), id))
	if err != nil {
		comp.Err = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, err := fetch(client, fmt.Sprintf("%s/progress/%s/accessibility", strings.TrimRight(legacyBase, "/"), id))
	if err != nil {
		comp.Err = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	if goStatus != legacyStatus {
		comp.Mismatches = append(comp.Mismatches, fmt.Sprintf("http status: go=%d legacy=%d", goStatus, legacyStatus))
		return comp
	}
	if goStatus != http.StatusOK {
		return comp
	}

	for _, field := range comparedFields {
		goVal := extract(goBody, field.GoPath)
		legacyVal := extract(legacyBody, field.LegacyPath)
		if !reflect.DeepEqual(normalize(goVal), normalize(legacyVal)) {
			comp.Mismatches = append(comp.Mismatches, fmt.Sprintf("%s: go=%v legacy=%v", field.Name, goVal, legacyVal))
		}
	}
	return comp
}

func fetch(client *http.Client, url string) (int, map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var body map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode body: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}

func extract(body map[string]interface{}, path string) interface{} {
	var current interface{} = body
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// normalize folds whole-number floats to int64 so numeric values compare
// equal regardless of JSON encoder choices.
func normalize(v interface{}) interface{} {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func printReport(results []comparison) {
	fmt.Println("Accessibility Shadow Compare")
	fmt.Println("============================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "ERROR"
		} else if len(res.Mismatches) > 0 {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s (go=%d legacy=%d)\n", status, res.ProgressID, res.GoStatus, res.LegacyStatus)
		if res.Err != nil {
			fmt.Printf("  error: %v\n", res.Err)
		}
		for _, m := range res.Mismatches {
			fmt.Printf("  %s\n", m)
		}
	}
}
