// Package reporting writes scan reports as JSON, CSV, HTML, or plain
// text. Missing values get documented defaults: "Unknown" for titles,
// zero for counters, empty lists for technologies.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/panelgrab/panelgrab/internal/scanner"
)

const schemaVersion = "1.0"

// Export writes the report to filename in the given format.
func Export(report *scanner.Report, filename, format string) error {
	switch format {
	case "json":
		return SaveJSON(report, filename)
	case "csv":
		return SaveCSV(report, filename)
	case "html":
		return GenerateHTML(report, filename)
	case "txt":
		return SaveTXT(report, filename)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// document is the JSON export envelope.
type document struct {
	SchemaVersion string                `json:"schema_version"`
	ScanInfo      scanner.ScanInfo      `json:"scan_info"`
	Stats         scanner.StatsSnapshot `json:"stats"`
	Results       []scanner.Result      `json:"results"`
}

func SaveJSON(report *scanner.Report, filename string) error {
	doc := document{
		SchemaVersion: schemaVersion,
		ScanInfo:      report.Info,
		Stats:         report.Stats,
		Results:       normalize(report.Results),
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func SaveCSV(report *scanner.Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"url", "status_code", "title", "confidence", "found", "has_login_form", "server", "forms", "inputs", "content_length", "response_time", "error"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range normalize(report.Results) {
		row := []string{
			r.URL,
			strconv.Itoa(r.StatusCode),
			r.Title,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			strconv.FormatBool(r.Found),
			strconv.FormatBool(r.HasLoginForm),
			r.Server,
			strconv.Itoa(r.Forms),
			strconv.Itoa(r.Inputs),
			strconv.Itoa(r.ContentLength),
			strconv.FormatFloat(r.ResponseTime, 'f', 3, 64),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func SaveTXT(report *scanner.Report, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "Scan report %s\n", report.Info.ScanID)
	fmt.Fprintf(file, "Target:   %s\n", report.Info.TargetURL)
	fmt.Fprintf(file, "Mode:     %s\n", report.Info.ScanMode)
	fmt.Fprintf(file, "Paths:    %d\n", report.Info.TotalPaths)
	fmt.Fprintf(file, "Duration: %.1fs\n", report.Info.ScanTime)
	fmt.Fprintf(file, "Found:    %d  Errors: %d  Retries: %d\n\n", report.Stats.Found, report.Stats.Errors, report.Stats.Retries)

	found := normalize(report.Found())
	if len(found) == 0 {
		fmt.Fprintln(file, "No admin panels found.")
		return nil
	}

	for _, r := range found {
		fmt.Fprintf(file, "[%d] %s\n", r.StatusCode, r.URL)
		fmt.Fprintf(file, "    title: %s  confidence: %.2f  login form: %t\n", r.Title, r.Confidence, r.HasLoginForm)
		if len(r.Technologies) > 0 {
			fmt.Fprintf(file, "    tech: %v\n", r.Technologies)
		}
	}
	return nil
}

// normalize sorts results by URL and fills in display defaults.
func normalize(results []scanner.Result) []scanner.Result {
	out := make([]scanner.Result, len(results))
	copy(out, results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].StatusCode < out[j].StatusCode
	})
	for i := range out {
		if out[i].Title == "" {
			out[i].Title = "Unknown"
		}
		if out[i].Technologies == nil {
			out[i].Technologies = []string{}
		}
		if out[i].Headers == nil {
			out[i].Headers = map[string]string{}
		}
	}
	return out
}

// CountByStatus buckets results for the summary line.
func CountByStatus(results []scanner.Result) map[string]int {
	counts := map[string]int{
		"2xx":    0,
		"3xx":    0,
		"4xx":    0,
		"5xx":    0,
		"found":  0,
		"errors": 0,
	}

	for _, r := range results {
		switch {
		case r.StatusCode >= 200 && r.StatusCode < 300:
			counts["2xx"]++
		case r.StatusCode >= 300 && r.StatusCode < 400:
			counts["3xx"]++
		case r.StatusCode >= 400 && r.StatusCode < 500:
			counts["4xx"]++
		case r.StatusCode >= 500:
			counts["5xx"]++
		}
		if r.Found {
			counts["found"]++
		}
		if r.Error != "" {
			counts["errors"]++
		}
	}

	return counts
}
