package scanner

// Task is one path probe against the target.
type Task struct {
	BaseURL string
	Path    string
}

// Result records the outcome of a single probe. Every completed probe
// produces one, found or not; failed probes carry Error instead.
type Result struct {
	URL           string            `json:"url"`
	Path          string            `json:"path"`
	StatusCode    int               `json:"status_code"`
	Title         string            `json:"title"`
	Confidence    float64           `json:"confidence"`
	Found         bool              `json:"found"`
	HasLoginForm  bool              `json:"has_login_form"`
	Technologies  []string          `json:"technologies,omitempty"`
	Headers       map[string]string `json:"headers"`
	Server        string            `json:"server,omitempty"`
	Forms         int               `json:"forms"`
	Inputs        int               `json:"inputs"`
	ContentLength int               `json:"content_length"`
	ResponseTime  float64           `json:"response_time"`
	Timestamp     string            `json:"timestamp"`
	Error         string            `json:"error,omitempty"`
}

// ScanInfo describes the scan that produced a set of results.
type ScanInfo struct {
	ScanID              string  `json:"scan_id"`
	TargetURL           string  `json:"target_url"`
	ScanMode            string  `json:"scan_mode"`
	TotalPaths          int     `json:"total_paths"`
	ScanTime            float64 `json:"scan_time"`
	FuzzingEnabled      bool    `json:"fuzzing_enabled"`
	RateLimitingEnabled bool    `json:"rate_limiting_enabled"`
	ProxiesEnabled      bool    `json:"proxies_enabled"`
	Timestamp           string  `json:"timestamp"`
}

// Report is the full output of a scan run.
type Report struct {
	Info    ScanInfo      `json:"scan_info"`
	Results []Result      `json:"results"`
	Stats   StatsSnapshot `json:"stats"`
}

// Found filters the report down to positive hits.
func (r *Report) Found() []Result {
	var found []Result
	for _, res := range r.Results {
		if res.Found {
			found = append(found, res)
		}
	}
	return found
}
