package detection

import (
	"net/http"
	"regexp"
	"strings"
)

// MaxBoost caps the total admin-likelihood boost AnalyzeAdminPotential can
// add on top of the base score.
const MaxBoost = 0.4

// adminKeywords indicate admin surfaces when found in URLs or titles.
var adminKeywords = []string{
	"admin", "administrator", "admincp", "adm", "moderator",
	"dashboard", "control panel", "cp", "panel", "login",
	"manager", "cms", "backend", "webmaster", "sysadmin",
	"console", "portal", "manage", "backoffice", "staff",
}

// adminPatterns are role/permission markers in page content, each with its
// fixed boost. The magnitudes are part of the observable scoring behavior;
// the pattern list itself is data and safe to extend.
var adminPatterns = []struct {
	re    *regexp.Regexp
	boost float64
	label string
}{
	{regexp.MustCompile(`(?i)role\s*[=:]\s*["']?admin`), 0.15, "role=admin"},
	{regexp.MustCompile(`(?i)permission\s*[=:]\s*["']?admin`), 0.15, "permission=admin"},
	{regexp.MustCompile(`(?i)isAdmin\s*[=:]\s*true`), 0.2, "isAdmin=true"},
	{regexp.MustCompile(`(?i)user_type\s*[=:]\s*["']?admin`), 0.15, "user_type=admin"},
	{regexp.MustCompile(`(?i)admin_access`), 0.1, "admin_access"},
}

// securityFeatures maps content/header markers to human-readable labels.
// Auth mechanisms appear on plenty of non-admin pages, so each adds only a
// token 0.02 to the boost; the labels matter more for reporting.
var securityFeatures = []struct {
	marker string
	label  string
}{
	{"csrf", "CSRF Protection"},
	{"x-csrf-token", "CSRF Token"},
	{"__requestverificationtoken", "Anti-Forgery Token"},
	{"captcha", "CAPTCHA"},
	{"recaptcha", "reCAPTCHA"},
	{"two-factor", "Two-Factor Auth"},
	{"otp", "OTP Authentication"},
}

// AdminDetails carries the evidence behind an admin-potential boost.
type AdminDetails struct {
	EndpointsFound   map[EndpointType]int
	AdminIndicators  []string
	SecurityFeatures []string
}

// AnalyzeAdminPotential aggregates endpoint hits, role-marker patterns and
// security features into a confidence boost, clamped to MaxBoost. The boost
// is additive to the base score computed by Score.
func (a *Analyzer) AnalyzeAdminPotential(content, title, url string, headers http.Header) (float64, AdminDetails) {
	boost := 0.0
	details := AdminDetails{EndpointsFound: make(map[EndpointType]int)}

	for endpointType, endpoints := range a.DetectAll(content, headers, url) {
		if len(endpoints) == 0 {
			continue
		}
		details.EndpointsFound[endpointType] = len(endpoints)

		for _, e := range endpoints {
			if containsAdminKeyword(e.URL) {
				boost += 0.1
				break
			}
		}
	}

	for _, p := range adminPatterns {
		if p.re.MatchString(content) {
			boost += p.boost
			details.AdminIndicators = append(details.AdminIndicators, p.label)
		}
	}

	lowerContent := strings.ToLower(content)
	lowerHeaders := strings.ToLower(flattenHeaders(headers))
	for _, f := range securityFeatures {
		if strings.Contains(lowerContent, f.marker) || strings.Contains(lowerHeaders, f.marker) {
			details.SecurityFeatures = append(details.SecurityFeatures, f.label)
			boost += 0.02
		}
	}

	if boost > MaxBoost {
		boost = MaxBoost
	}
	return boost, details
}

// Score computes the final admin-likelihood confidence for a response:
// a base score from status code, login form and admin keywords, plus the
// AnalyzeAdminPotential boost, clamped to [0, 1].
func (a *Analyzer) Score(statusCode int, content, title, url string, headers http.Header) (float64, AdminDetails) {
	base := 0.0

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		// A guarded page is itself a strong signal.
		base += 0.3
	case statusCode == http.StatusOK:
		base += 0.15
	case statusCode == http.StatusMovedPermanently || statusCode == http.StatusFound:
		base += 0.1
	}

	if HasLoginForm(content) {
		base += 0.35
	}
	if containsAdminKeyword(url) {
		base += 0.15
	}
	if containsAdminKeyword(title) {
		base += 0.1
	}

	boost, details := a.AnalyzeAdminPotential(content, title, url, headers)

	confidence := base + boost
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence, details
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	formRe     = regexp.MustCompile(`(?i)<form\b`)
	inputRe    = regexp.MustCompile(`(?i)<input\b`)
	passwordRe = regexp.MustCompile(`(?i)type\s*=\s*["']?password`)
	loginArgRe = regexp.MustCompile(`(?i)name\s*=\s*["']?(user(name)?|log(in)?|pass(word|wd)?|email)`)
)

// ExtractTitle returns the trimmed contents of the first <title> element.
func ExtractTitle(content string) string {
	m := titleRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(m[1]), " ")
}

// HasLoginForm reports whether content contains a form that looks like a
// login: a form element plus a password input or a credential field name.
func HasLoginForm(content string) bool {
	if !formRe.MatchString(content) {
		return false
	}
	return passwordRe.MatchString(content) || loginArgRe.MatchString(content)
}

// CountForms returns the number of form and input elements in content.
func CountForms(content string) (forms, inputs int) {
	return len(formRe.FindAllStringIndex(content, -1)),
		len(inputRe.FindAllStringIndex(content, -1))
}

func containsAdminKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range adminKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func flattenHeaders(headers http.Header) string {
	var b strings.Builder
	for k, vs := range headers {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strings.Join(vs, ","))
		b.WriteString("\n")
	}
	return b.String()
}
