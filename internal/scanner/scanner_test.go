package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panelgrab/panelgrab/internal/config"
)

func writeWordlist(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(target, wordlist string) config.Config {
	cfg := config.Default()
	cfg.TargetURL = target
	cfg.Wordlist = wordlist
	cfg.UseRateLimiting = false
	return cfg
}

const adminLoginPage = `<html>
<head><title>Admin Panel - Login</title></head>
<body>
<form method="post" action="/admin/login">
<input type="text" name="username">
<input type="password" name="password">
</form>
</body>
</html>`

func TestScanFindsAdminPanel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin":
			w.Write([]byte(adminLoginPage))
		case "/login":
			w.Write([]byte("<html><body>nothing here</body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	wordlist := writeWordlist(t, "paths.txt", "admin\nlogin\nbackup\ntest\n")
	cfg := testConfig(server.URL, wordlist)
	cfg.DetectionMode = config.ModeAggressive

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(report.Results))
	}

	found := report.Found()
	if len(found) != 1 {
		t.Fatalf("expected exactly 1 found result, got %d", len(found))
	}
	hit := found[0]
	if !strings.HasSuffix(hit.URL, "/admin") {
		t.Errorf("found wrong URL: %s", hit.URL)
	}
	if !hit.HasLoginForm {
		t.Error("expected login form on /admin")
	}
	if hit.Confidence < cfg.Mode().ConfidenceThreshold {
		t.Errorf("confidence %f below threshold", hit.Confidence)
	}
	if hit.Title != "Admin Panel - Login" {
		t.Errorf("wrong title: %q", hit.Title)
	}

	if report.Stats.Found != 1 {
		t.Errorf("stats found = %d, want 1", report.Stats.Found)
	}
	if report.Stats.Processed != 4 {
		t.Errorf("stats processed = %d, want 4", report.Stats.Processed)
	}
	if report.Info.ScanID == "" {
		t.Error("scan ID not assigned")
	}
}

func TestScanRecordsAllProbes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	wordlist := writeWordlist(t, "paths.txt", "a\nb\nc\n")
	cfg := testConfig(server.URL, wordlist)

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results even with no hits, got %d", len(report.Results))
	}
	for _, r := range report.Results {
		if r.Found {
			t.Errorf("404 should never be found: %s", r.URL)
		}
		if r.StatusCode != http.StatusNotFound {
			t.Errorf("wrong status for %s: %d", r.URL, r.StatusCode)
		}
	}
}

func TestScanCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "path"+string(rune('a'+i%26)))
	}
	wordlist := writeWordlist(t, "paths.txt", strings.Join(lines, "\n"))

	cfg := testConfig(server.URL, wordlist)
	cfg.DetectionMode = config.ModeSimple

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := engine.Run(ctx)
		if err == nil {
			t.Error("expected context error after cancellation")
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("scan did not stop after cancellation")
	}
}

func TestStealthSampling(t *testing.T) {
	// 600 paths, 50 of which match stealth keywords. The shaped list
	// keeps all matches plus a 200-path random sample.
	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, "admin-area-"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	for i := 0; i < 550; i++ {
		paths = append(paths, "static-asset-"+string(rune('a'+i%26))+string(rune('a'+(i/26)%26))+string(rune('a'+i/676)))
	}

	cfg := testConfig("http://example.com", "unused")
	cfg.DetectionMode = config.ModeStealth
	cfg.StealthSeed = 7

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	shaped := engine.shapePaths(paths, cfg.Mode())
	if len(shaped) != 250 {
		t.Fatalf("expected 250 stealth paths, got %d", len(shaped))
	}

	matched := 0
	for _, p := range shaped {
		if matchesStealthKeyword(p) {
			matched++
		}
	}
	if matched != 50 {
		t.Errorf("expected all 50 keyword paths kept, got %d", matched)
	}

	// Same seed, same sample.
	engine2, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	shaped2 := engine2.shapePaths(paths, cfg.Mode())
	if len(shaped2) != len(shaped) {
		t.Fatalf("seeded sampling not deterministic: %d vs %d", len(shaped), len(shaped2))
	}
	for i := range shaped {
		if shaped[i] != shaped2[i] {
			t.Fatalf("seeded sampling diverged at %d: %q vs %q", i, shaped[i], shaped2[i])
		}
	}
}

func TestStealthKeywordCap(t *testing.T) {
	var paths []string
	for i := 0; i < 400; i++ {
		paths = append(paths, "admin"+string(rune('a'+i%26))+string(rune('a'+(i/26)%26)))
	}

	cfg := testConfig("http://example.com", "unused")
	cfg.DetectionMode = config.ModeStealth
	cfg.StealthSeed = 1

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	shaped := engine.shapePaths(paths, cfg.Mode())
	// 300 keyword matches plus up to 100 sampled from the overflow.
	if len(shaped) > 400 || len(shaped) < 300 {
		t.Fatalf("unexpected stealth path count: %d", len(shaped))
	}
}

func TestSimpleModeCapsPaths(t *testing.T) {
	var paths []string
	for i := 0; i < 1500; i++ {
		paths = append(paths, "p"+string(rune('a'+i%26))+string(rune('a'+(i/26)%26))+string(rune('a'+i/676)))
	}

	cfg := testConfig("http://example.com", "unused")
	cfg.DetectionMode = config.ModeSimple

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	shaped := engine.shapePaths(paths, cfg.Mode())
	if len(shaped) != 1000 {
		t.Fatalf("simple mode should cap at 1000 paths, got %d", len(shaped))
	}
	if shaped[0] != paths[0] {
		t.Error("simple mode should keep list head")
	}
}

func TestLoadTextWordlist(t *testing.T) {
	path := writeWordlist(t, "paths.txt", "admin\n\n# comment\nlogin\n  dashboard  \n")

	paths, err := loadTextWordlist(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"admin", "login", "dashboard"}
	if len(paths) != len(want) {
		t.Fatalf("got %d paths, want %d", len(paths), len(want))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestLoadJSONWordlist(t *testing.T) {
	bare := writeWordlist(t, "bare.json", `["admin", "login"]`)
	paths, err := loadJSONWordlist(bare)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || paths[0] != "admin" {
		t.Fatalf("bare array not parsed: %v", paths)
	}

	wrapped := writeWordlist(t, "wrapped.json", `{"paths": ["admin", "login", "cp"]}`)
	paths, err = loadJSONWordlist(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 || paths[2] != "cp" {
		t.Fatalf("wrapped object not parsed: %v", paths)
	}

	if _, err := loadJSONWordlist(writeWordlist(t, "bad.json", `{oops`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestRetryOnServerFailure(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&hits, 1)
		if n == 1 {
			// Drop the first connection to force a transport error.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	wordlist := writeWordlist(t, "paths.txt", "status\n")
	cfg := testConfig(server.URL, wordlist)
	cfg.DetectionMode = config.ModeAggressive

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0].Error != "" {
		t.Errorf("retry should have recovered, got error %q", report.Results[0].Error)
	}
	if report.Stats.Retries == 0 {
		t.Error("expected at least one retry recorded")
	}
	// The retried attempt must not double-count the task.
	if report.Stats.Processed != 1 {
		t.Errorf("processed = %d, want 1 (one task, regardless of attempts)", report.Stats.Processed)
	}
	if report.Stats.Processed > report.Stats.Total {
		t.Errorf("processed %d exceeds total %d", report.Stats.Processed, report.Stats.Total)
	}
}

func TestStatsStartTimeSafeUnderReset(t *testing.T) {
	stats := NewStats(10)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if stats.StartTime().IsZero() {
					t.Error("start time read as zero")
					return
				}
				_ = stats.Snapshot()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		stats.Reset(int64(i))
	}
	close(stop)
	wg.Wait()

	if stats.GetTotal() != 999 {
		t.Errorf("total = %d after final reset, want 999", stats.GetTotal())
	}
}

func TestConcurrencyShrinksOnTimeouts(t *testing.T) {
	cfg := testConfig("http://example.com", "unused")
	cfg.DetectionMode = config.ModeAggressive

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	engine.stats = NewStats(0)
	atomic.StoreInt32(&engine.allowedWorkers, 100)

	for i := 0; i < config.MaxTimeoutThreshold+1; i++ {
		engine.noteTimeout()
	}
	if got := atomic.LoadInt32(&engine.allowedWorkers); got != 50 {
		t.Fatalf("allowed workers = %d, want 50", got)
	}

	// Keep shrinking; never below the floor.
	for j := 0; j < 10; j++ {
		for i := 0; i < config.MaxTimeoutThreshold+1; i++ {
			engine.noteTimeout()
		}
	}
	if got := atomic.LoadInt32(&engine.allowedWorkers); got != config.MinConcurrentTasks {
		t.Fatalf("allowed workers = %d, want floor %d", got, config.MinConcurrentTasks)
	}
}

func TestRetryDelayBounds(t *testing.T) {
	cfg := testConfig("http://example.com", "unused")
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		base := config.RetryDelaySeconds
		for i := 1; i < attempt; i++ {
			base *= config.TimeoutBackoffFactor
		}
		for i := 0; i < 20; i++ {
			d := engine.retryDelay(attempt).Seconds()
			if d < 0 {
				t.Fatalf("negative delay %f", d)
			}
			if d > base+config.RetryJitterSeconds+0.001 {
				t.Fatalf("attempt %d delay %f above %f", attempt, d, base+config.RetryJitterSeconds)
			}
		}
	}
}

func TestErrorResultWhenServerUnreachable(t *testing.T) {
	wordlist := writeWordlist(t, "paths.txt", "admin\n")
	// Port 1 refuses connections immediately.
	cfg := testConfig("http://127.0.0.1:1", wordlist)
	cfg.DetectionMode = config.ModeSimple

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	report, err := engine.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0].Error == "" {
		t.Error("expected error recorded on unreachable target")
	}
	if report.Results[0].Found {
		t.Error("failed probe must not be found")
	}
	if report.Stats.Errors == 0 {
		t.Error("expected error counter incremented")
	}
}

func TestFuzzingExpandsWordlist(t *testing.T) {
	wordlist := writeWordlist(t, "paths.txt", "admin\n")
	cfg := testConfig("http://example.com", wordlist)
	cfg.UseFuzzing = true
	cfg.FuzzingDepth = 1

	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := engine.loadPaths()
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) <= 1 {
		t.Fatalf("fuzzing should expand beyond the original path, got %d", len(paths))
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("duplicate path after fuzzing: %q", p)
		}
		seen[p] = true
	}
}
