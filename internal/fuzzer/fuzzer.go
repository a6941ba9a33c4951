// Package fuzzer expands seed paths into syntactic variants and generates
// curated admin/API path catalogs. Everything here is pure: no I/O, and the
// same input always produces the same output.
package fuzzer

import (
	"sort"
	"strings"
)

// Depth-scaled extension catalogs. Depth 1 keeps the probe count small;
// depth 3 is the full catalog including scripting and markup extensions.
var (
	extensionsDepth1 = []string{".php", ".html", ".asp"}
	extensionsDepth2 = []string{".php", ".html", ".asp", ".aspx", ".jsp", ".htm"}
	extensionsFull   = []string{
		".php", ".asp", ".aspx", ".jsp", ".cfm",
		".html", ".htm", ".shtml", ".py", ".rb",
	}

	backupsDepth1 = []string{".bak", ".old"}
	backupsDepth2 = []string{".bak", ".old", ".backup", ".orig"}
	backupsFull   = []string{
		".bak", ".old", ".backup", ".orig", ".save",
		".tmp", ".temp", ".swp", "~", ".copy",
	}
)

// priorityKeywords raise a candidate's score when present anywhere in the path.
var priorityKeywords = []string{
	"admin", "administrator", "dashboard", "panel", "control",
	"login", "cp", "manage", "backend", "webmaster",
}

// canonicalAdminTerms are basenames that near-certainly name an admin surface.
var canonicalAdminTerms = map[string]bool{
	"admin":         true,
	"administrator": true,
	"dashboard":     true,
	"login":         true,
}

const DefaultMaxVariations = 50

// Fuzzer generates path variants along independently toggleable axes.
type Fuzzer struct {
	Depth             int
	Extensions        bool
	Backups           bool
	CaseVariations    bool
	SeparatorVariants bool
	MaxVariations     int

	exts    []string
	backups []string
}

// New returns a Fuzzer for the given depth (clamped to 1..3) with every
// expansion axis enabled.
func New(depth int) *Fuzzer {
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	f := &Fuzzer{
		Depth:             depth,
		Extensions:        true,
		Backups:           true,
		CaseVariations:    true,
		SeparatorVariants: true,
		MaxVariations:     DefaultMaxVariations,
	}

	switch depth {
	case 1:
		f.exts = extensionsDepth1
		f.backups = backupsDepth1
	case 2:
		f.exts = extensionsDepth2
		f.backups = backupsDepth2
	default:
		f.exts = extensionsFull
		f.backups = backupsFull
	}

	return f
}

// Expand returns the deduplicated variants of a single seed path, capped at
// MaxVariations. Variants are collected in insertion order so the result is
// identical across calls for the same input.
func (f *Fuzzer) Expand(path string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	add(path)

	path = strings.Trim(path, "/")
	add(path)

	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]
	dir := ""
	if len(parts) > 1 {
		dir = strings.Join(parts[:len(parts)-1], "/") + "/"
	}

	name := basename
	originalExt := ""
	if idx := strings.LastIndex(basename, "."); idx > 0 {
		name = basename[:idx]
		originalExt = basename[idx:]
	}

	if f.Extensions {
		for _, ext := range f.exts {
			add(dir + name + ext)
			add(dir + name)
		}
	}

	if f.Backups {
		for _, bext := range f.backups {
			add(path + bext)
			if originalExt != "" {
				base := strings.TrimSuffix(path, originalExt)
				add(base + bext)
				// admin.bak.php style: backup suffix squeezed in
				// before the original extension.
				add(base + bext + originalExt)
			}
		}
	}

	if f.CaseVariations {
		add(strings.ToLower(path))
		add(strings.ToUpper(path))
		add(toCamelCase(path))
		add(toTitleCase(path))
	}

	if f.SeparatorVariants {
		add(strings.ReplaceAll(path, "_", "-"))
		add(strings.ReplaceAll(path, "-", "_"))
		add(strings.NewReplacer("_", "", "-", "").Replace(path))
	}

	if len(out) > f.MaxVariations {
		out = out[:f.MaxVariations]
	}
	return out
}

// ExpandAll expands every seed and returns the deduplicated union.
func (f *Fuzzer) ExpandAll(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		for _, v := range f.Expand(p) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// GenerateAdminPaths produces the curated admin-panel catalog independent of
// any seed wordlist. Depth ≥ 2 extends every base path with common
// login/index/dashboard/home suffixes and extension combinations.
func (f *Fuzzer) GenerateAdminPaths() []string {
	basePaths := []string{
		"admin", "administrator", "admincp", "admin_area", "admin_panel",
		"dashboard", "control", "controlpanel", "cp", "cpanel",
		"backend", "backoffice", "manage", "manager", "management",
		"login", "signin", "auth", "authentication",
		"panel", "webadmin", "sysadmin", "adm", "admin1", "admin2",
		"moderator", "webmaster", "site_admin", "staff",
	}

	cmsPaths := []string{
		"wp-admin", "wp-login.php", "wp-admin/admin.php",
		"administrator/index.php", "joomla/administrator",
		"user/login", "admin/login", "admin/dashboard",
		"adminpanel", "admins", "admin_login", "user/admin",
	}

	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range basePaths {
		add(p)
	}
	for _, p := range cmsPaths {
		add(p)
	}

	if f.Depth >= 2 {
		for _, p := range basePaths {
			add(p + "/login")
			add(p + "/index")
			add(p + "/dashboard")
			add(p + "/home")

			exts := f.exts
			if len(exts) > 3 {
				exts = exts[:3]
			}
			for _, ext := range exts {
				add(p + ext)
				add(p + "/login" + ext)
				add(p + "/index" + ext)
			}
		}
	}

	return out
}

// GenerateAPIPaths returns the fixed API discovery catalog.
func (f *Fuzzer) GenerateAPIPaths() []string {
	return []string{
		"api", "api/v1", "api/v2", "api/admin", "api/users",
		"rest", "rest/api", "graphql", "graphiql",
		"swagger", "swagger-ui", "api-docs", "docs/api",
		"openapi", "openapi.json", "openapi.yaml",
		"wsdl", "soap", "xmlrpc", "jsonrpc",
		".well-known", "health", "status", "ping",
		"ws", "websocket", "socket.io",
	}
}

// Prioritize orders candidates so the ones most likely to be admin surfaces
// are probed first. The sort is stable, keeping ties in input order.
func Prioritize(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.SliceStable(out, func(i, j int) bool {
		return ScorePath(out[i]) > ScorePath(out[j])
	})
	return out
}

// ScorePath rates a single candidate: +10 per admin-indicative keyword,
// +20 if the basename is a canonical admin term, -5 for paths longer than
// 50 characters, +3 for .php/.aspx endings.
func ScorePath(path string) int {
	score := 0
	lower := strings.ToLower(path)

	for _, kw := range priorityKeywords {
		if strings.Contains(lower, kw) {
			score += 10
		}
	}

	basename := lower
	if idx := strings.LastIndex(basename, "/"); idx >= 0 {
		basename = basename[idx+1:]
	}
	if idx := strings.Index(basename, "."); idx >= 0 {
		basename = basename[:idx]
	}
	if canonicalAdminTerms[basename] {
		score += 20
	}

	if len(path) > 50 {
		score -= 5
	}

	if strings.HasSuffix(lower, ".php") || strings.HasSuffix(lower, ".aspx") {
		score += 3
	}

	return score
}

func toCamelCase(s string) string {
	parts := strings.Split(strings.ReplaceAll(s, "-", "_"), "_")
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(capitalize(p))
	}
	return b.String()
}

func toTitleCase(s string) string {
	parts := strings.Split(strings.ReplaceAll(s, "-", "_"), "_")
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, "_")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
