package reporting

import (
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/panelgrab/panelgrab/internal/scanner"
)

func GenerateHTML(report *scanner.Report, filename string) error {
	htmlTemplate := `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>PanelGrab Scan Report</title>
	<style>
		* { margin: 0; padding: 0; box-sizing: border-box; }
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
			background: #f5f5f5;
			padding: 20px;
			color: #333;
		}
		.container { max-width: 1400px; margin: 0 auto; background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
		h1 { font-size: 24px; margin-bottom: 10px; color: #222; }
		.meta { color: #666; font-size: 14px; margin-bottom: 30px; }
		.stats {
			display: grid;
			grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
			gap: 15px;
			margin-bottom: 30px;
		}
		.stat-card { background: #f9f9f9; padding: 15px; border-radius: 6px; border-left: 3px solid #007bff; }
		.stat-value { font-size: 24px; font-weight: bold; color: #007bff; }
		.stat-label { font-size: 12px; color: #666; margin-top: 5px; }
		.search-box { margin-bottom: 20px; }
		#searchInput {
			width: 100%%;
			padding: 12px;
			font-size: 14px;
			border: 1px solid #ddd;
			border-radius: 6px;
		}
		table { width: 100%%; border-collapse: collapse; font-size: 14px; }
		th { background: #f0f0f0; padding: 12px; text-align: left; font-weight: 600; border-bottom: 2px solid #ddd; }
		td { padding: 10px 12px; border-bottom: 1px solid #eee; }
		tr:hover { background: #f9f9f9; }
		.status-200 { color: #28a745; font-weight: 600; }
		.status-300 { color: #007bff; font-weight: 600; }
		.status-400 { color: #dc3545; font-weight: 600; }
		.status-500 { color: #ffc107; font-weight: 600; }
		.badge {
			display: inline-block;
			padding: 3px 8px;
			border-radius: 4px;
			font-size: 11px;
			font-weight: 600;
			background: #28a745;
			color: white;
		}
		.badge-login { background: #dc3545; }
	</style>
</head>
<body>
	<div class="container">
		<h1>PanelGrab Scan Report</h1>
		<div class="meta">Scan %s against %s (%s mode) &middot; generated %s</div>
		<div class="stats">
			<div class="stat-card"><div class="stat-value">%d</div><div class="stat-label">Paths Probed</div></div>
			<div class="stat-card"><div class="stat-value">%d</div><div class="stat-label">Panels Found</div></div>
			<div class="stat-card"><div class="stat-value">%d</div><div class="stat-label">Errors</div></div>
			<div class="stat-card"><div class="stat-value">%.1fs</div><div class="stat-label">Duration</div></div>
		</div>
		<div class="search-box">
			<input type="text" id="searchInput" placeholder="Filter by URL, title, or technology..." onkeyup="filterTable()">
		</div>
		<table id="resultsTable">
			<thead>
				<tr>
					<th>URL</th>
					<th>Status</th>
					<th>Title</th>
					<th>Confidence</th>
					<th>Flags</th>
					<th>Technologies</th>
				</tr>
			</thead>
			<tbody>
%s			</tbody>
		</table>
	</div>
	<script>
		function filterTable() {
			var filter = document.getElementById('searchInput').value.toLowerCase();
			var rows = document.querySelectorAll('#resultsTable tbody tr');
			rows.forEach(function(row) {
				row.style.display = row.textContent.toLowerCase().includes(filter) ? '' : 'none';
			});
		}
	</script>
</body>
</html>
`

	var rows strings.Builder
	for _, r := range normalize(report.Results) {
		statusClass := "status-500"
		switch {
		case r.StatusCode >= 200 && r.StatusCode < 300:
			statusClass = "status-200"
		case r.StatusCode >= 300 && r.StatusCode < 400:
			statusClass = "status-300"
		case r.StatusCode >= 400 && r.StatusCode < 500:
			statusClass = "status-400"
		}

		var flags strings.Builder
		if r.Found {
			flags.WriteString(`<span class="badge">found</span> `)
		}
		if r.HasLoginForm {
			flags.WriteString(`<span class="badge badge-login">login form</span>`)
		}

		rows.WriteString(fmt.Sprintf(
			"\t\t\t\t<tr><td>%s</td><td class=\"%s\">%d</td><td>%s</td><td>%.2f</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(r.URL),
			statusClass,
			r.StatusCode,
			html.EscapeString(r.Title),
			r.Confidence,
			flags.String(),
			html.EscapeString(strings.Join(r.Technologies, ", ")),
		))
	}

	content := fmt.Sprintf(htmlTemplate,
		html.EscapeString(report.Info.ScanID),
		html.EscapeString(report.Info.TargetURL),
		html.EscapeString(report.Info.ScanMode),
		time.Now().Format("2006-01-02 15:04:05"),
		report.Stats.Processed,
		report.Stats.Found,
		report.Stats.Errors,
		report.Info.ScanTime,
		rows.String(),
	)

	return os.WriteFile(filename, []byte(content), 0o644)
}
