package detection

import (
	"net/http"
	"strings"
)

// TechSignature defines a fingerprint for a single technology. Detection
// runs through three layers in order: header → cookie → body pattern.
type TechSignature struct {
	Name        string
	HeaderName  string // response header key to inspect (case-insensitive)
	HeaderValue string // substring match against the header value
	CookieName  string // Set-Cookie name substring match
	BodyPattern string // raw body substring match
}

// techSignatures is ordered roughly by how common each tech is in the wild.
// Kept lean: the goal is giving scan results useful context, not rivaling
// Wappalyzer.
var techSignatures = []TechSignature{
	{Name: "Nginx", HeaderName: "Server", HeaderValue: "nginx"},
	{Name: "Apache", HeaderName: "Server", HeaderValue: "apache"},
	{Name: "IIS", HeaderName: "Server", HeaderValue: "microsoft-iis"},
	{Name: "LiteSpeed", HeaderName: "Server", HeaderValue: "litespeed"},
	{Name: "Caddy", HeaderName: "Server", HeaderValue: "caddy"},

	{Name: "PHP", HeaderName: "X-Powered-By", HeaderValue: "php"},
	{Name: "PHP", CookieName: "PHPSESSID"},
	{Name: "ASP.NET", HeaderName: "X-Powered-By", HeaderValue: "asp.net"},
	{Name: "ASP.NET", CookieName: "ASP.NET_SessionId"},
	{Name: "Java", CookieName: "JSESSIONID"},
	{Name: "Express", HeaderName: "X-Powered-By", HeaderValue: "express"},
	{Name: "Django", CookieName: "csrftoken"},
	{Name: "Laravel", CookieName: "laravel_session"},
	{Name: "Rails", CookieName: "_rails_session"},
	{Name: "Flask", HeaderName: "Server", HeaderValue: "werkzeug"},

	{Name: "WordPress", BodyPattern: "wp-content"},
	{Name: "WordPress", BodyPattern: "wp-includes"},
	{Name: "Joomla", BodyPattern: "/media/jui/"},
	{Name: "Drupal", HeaderName: "X-Generator", HeaderValue: "drupal"},
	{Name: "Drupal", BodyPattern: "sites/default/files"},

	{Name: "React", BodyPattern: "data-reactroot"},
	{Name: "Next.js", BodyPattern: "_next/static"},
	{Name: "Vue.js", BodyPattern: "data-v-"},
	{Name: "Angular", BodyPattern: "ng-version="},
	{Name: "jQuery", BodyPattern: "jquery.min.js"},

	{Name: "Cloudflare", HeaderName: "Server", HeaderValue: "cloudflare"},
	{Name: "Vercel", HeaderName: "X-Vercel-Id", HeaderValue: ""},
	{Name: "Netlify", HeaderName: "X-Nf-Request-Id", HeaderValue: ""},
}

// DetectTechnologies inspects response headers, cookies and the body for
// known fingerprints and returns a deduplicated list of technology names.
func DetectTechnologies(headers http.Header, body string) []string {
	seen := make(map[string]bool)
	var matches []string
	lowerBody := strings.ToLower(body)
	cookies := strings.Join(headers.Values("Set-Cookie"), "; ")

	for _, sig := range techSignatures {
		if seen[sig.Name] {
			continue
		}

		matched := false
		switch {
		case sig.HeaderName != "":
			v := headers.Get(sig.HeaderName)
			if sig.HeaderValue == "" {
				matched = v != ""
			} else {
				matched = strings.Contains(strings.ToLower(v), sig.HeaderValue)
			}
		case sig.CookieName != "":
			matched = strings.Contains(cookies, sig.CookieName)
		case sig.BodyPattern != "":
			matched = strings.Contains(lowerBody, strings.ToLower(sig.BodyPattern))
		}

		if matched {
			seen[sig.Name] = true
			matches = append(matches, sig.Name)
		}
	}

	return matches
}
