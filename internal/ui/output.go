package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/panelgrab/panelgrab/internal/config"
	"github.com/panelgrab/panelgrab/internal/scanner"
)

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	red     = "\033[31m"
	green   = "\033[32m"
	yellow  = "\033[33m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
	white   = "\033[37m"

	bgRed   = "\033[41m"
	bgGreen = "\033[42m"
	bgBlue  = "\033[44m"
)

func PrintBanner() {
	fmt.Println()
	fmt.Printf("%s%s", bold, cyan)
	fmt.Println("   ╔═══════════════════════════════════════════╗")
	fmt.Println("   ║                                           ║")
	fmt.Printf("   ║   %sPANELGRAB%s%s%s  v1.0                       ║\n", white, reset, bold, cyan)
	fmt.Println("   ║   Admin Panel Discovery                   ║")
	fmt.Println("   ║                                           ║")
	fmt.Println("   ╚═══════════════════════════════════════════╝")
	fmt.Printf("%s\n", reset)
}

func PrintConfig(cfg config.Config) {
	mode := cfg.Mode()

	fmt.Printf("\n%s%s ⚙  Scan Configuration%s\n", bold, cyan, reset)
	fmt.Printf("%s───────────────────────────────%s\n", dim, reset)
	fmt.Printf("  %sTarget%s      %s%s%s\n", dim, reset, white, cfg.TargetURL, reset)
	fmt.Printf("  %sMode%s        %s%s%s %s(%s)%s\n", dim, reset, white, cfg.DetectionMode, reset, dim, mode.Description, reset)
	fmt.Printf("  %sWorkers%s     %s%d%s\n", dim, reset, white, mode.MaxConcurrentTasks, reset)
	fmt.Printf("  %sTimeouts%s    %s%ds connect / %ds read%s\n", dim, reset, white, mode.ConnectTimeout, mode.ReadTimeout, reset)
	fmt.Printf("  %sWordlist%s    %s%s%s\n", dim, reset, white, cfg.Wordlist, reset)
	if cfg.UseRateLimiting {
		kind := "fixed"
		if cfg.AdaptiveRateLimiting {
			kind = "adaptive"
		}
		fmt.Printf("  %sRate Limit%s  %s%.0f req/s (%s)%s\n", dim, reset, white, cfg.RateLimit, kind, reset)
	}
	if cfg.UseProxies {
		fmt.Printf("  %sProxies%s     %s%s rotation%s\n", dim, reset, white, cfg.ProxyRotationStrategy, reset)
	}
	if cfg.UseFuzzing {
		fmt.Printf("  %sFuzzing%s     %sdepth %d%s\n", dim, reset, white, cfg.FuzzingDepth, reset)
	}
	fmt.Println()
}

func PrintResult(result scanner.Result) {
	statusColor := statusToColor(result.StatusCode)
	statusBg := statusToBg(result.StatusCode)

	badge := fmt.Sprintf(" %s%s %d %s", bold, statusBg, result.StatusCode, reset)

	var tags []string
	if result.HasLoginForm {
		tags = append(tags, fmt.Sprintf("%s%s LOGIN %s", bold, bgRed, reset))
	}
	if len(result.Technologies) > 0 {
		tags = append(tags, fmt.Sprintf("%s%s%s%s", dim, cyan, strings.Join(result.Technologies, ","), reset))
	}

	tagStr := ""
	if len(tags) > 0 {
		tagStr = "  " + strings.Join(tags, " ")
	}

	title := result.Title
	if title == "" {
		title = "Unknown"
	}

	fmt.Printf("%s  %s%.2f%s  %s%s%s  %s%s%s%s\n",
		badge,
		magenta, result.Confidence, reset,
		statusColor, result.URL, reset,
		dim, title, reset,
		tagStr)
}

func StartProgressReporter(ctx context.Context, stats *scanner.Stats) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	spinner := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	frame := 0

	for {
		select {
		case <-ctx.Done():
			fmt.Print("\r\033[K")
			return
		case <-ticker.C:
			elapsed := time.Since(stats.StartTime()).Seconds()
			if elapsed == 0 {
				elapsed = 1
			}
			reqPerSec := float64(stats.GetProcessed()) / elapsed
			total := stats.GetTotal()
			processed := stats.GetProcessed()
			var progress float64
			if total > 0 {
				progress = float64(processed) / float64(total) * 100
			}

			barWidth := 20
			filled := int(progress / 100 * float64(barWidth))
			if filled > barWidth {
				filled = barWidth
			}
			bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

			s := spinner[frame%len(spinner)]
			frame++

			foundStr := fmt.Sprintf("%s%d%s", green, stats.GetFound(), reset)
			errStr := ""
			if errors := stats.GetErrors(); errors > 0 {
				errStr = fmt.Sprintf("  %s✗ %d%s", red, errors, reset)
			}

			fmt.Printf("\r  %s%s %s%s%s %s%.0f%%%s  %s%d%s req/s  Found: %s%s",
				cyan, s,
				dim, bar, reset,
				bold, progress, reset,
				dim, int(reqPerSec), reset,
				foundStr, errStr)
		}
	}
}

func PrintSummary(report *scanner.Report) {
	stats := report.Stats

	elapsed := time.Duration(stats.Elapsed * float64(time.Second))
	reqPerSec := 0.0
	if stats.Elapsed > 0 {
		reqPerSec = float64(stats.Processed) / stats.Elapsed
	}

	fmt.Println()
	fmt.Printf("\n%s%s ✔  Scan Complete%s\n", bold, green, reset)
	fmt.Printf("%s───────────────────────────────%s\n", dim, reset)

	fmt.Printf("  %sRequests%s    %s%d%s\n", dim, reset, white, stats.Processed, reset)
	fmt.Printf("  %sPanels%s      %s%s%d%s\n", dim, reset, bold, green, stats.Found, reset)

	if stats.RateLimitHits > 0 {
		fmt.Printf("  %s429 Hits%s    %s%s%d%s\n", dim, reset, bold, yellow, stats.RateLimitHits, reset)
	}
	if stats.Retries > 0 {
		fmt.Printf("  %sRetries%s     %s%d%s\n", dim, reset, white, stats.Retries, reset)
	}
	if stats.Errors > 0 {
		fmt.Printf("  %sErrors%s      %s%s%d%s\n", dim, reset, bold, red, stats.Errors, reset)
	}

	fmt.Printf("  %sDuration%s    %s%s%s\n", dim, reset, white, elapsed.Round(time.Millisecond), reset)
	fmt.Printf("  %sSpeed%s       %s%.0f req/s%s\n", dim, reset, white, reqPerSec, reset)
	fmt.Println()

	for _, r := range report.Found() {
		PrintResult(r)
	}
}

func statusToColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return green
	case code >= 300 && code < 400:
		return blue
	case code >= 400 && code < 500:
		return red
	case code >= 500:
		return yellow
	default:
		return white
	}
}

func statusToBg(code int) string {
	switch {
	case code >= 200 && code < 300:
		return bgGreen
	case code >= 300 && code < 400:
		return bgBlue
	default:
		return bgRed
	}
}
