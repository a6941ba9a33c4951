// Package detection analyzes probe responses: it recognizes WebSocket,
// GraphQL, REST and SOAP endpoints, estimates how likely a page is an admin
// surface, and fingerprints the serving technology stack.
package detection

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
)

// EndpointType is the closed set of endpoint kinds the detectors recognize.
type EndpointType string

const (
	TypeWebSocket EndpointType = "websocket"
	TypeGraphQL   EndpointType = "graphql"
	TypeRESTAPI   EndpointType = "rest_api"
	TypeSOAP      EndpointType = "soap"
)

// EndpointInfo describes one detected endpoint. Transient: folded into
// confidence scoring and discarded unless the caller keeps it.
type EndpointInfo struct {
	URL        string
	Type       EndpointType
	Confidence float64
	Details    map[string]string
}

// Detector recognizes a single endpoint type in a response.
type Detector interface {
	Detect(content string, headers http.Header, url string) []EndpointInfo
	CommonPaths() []string
}

var wsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)wss?://[^\s"'<>]+`),
	regexp.MustCompile(`(?i)new\s+WebSocket\s*\(["']([^"']+)["']\)`),
}

var wsKeywords = []string{"socket.io", "sockjs"}

type websocketDetector struct{}

func (websocketDetector) Detect(content string, headers http.Header, url string) []EndpointInfo {
	var found []EndpointInfo

	if strings.Contains(strings.ToLower(headers.Get("Upgrade")), "websocket") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeWebSocket,
			Confidence: 0.9,
			Details:    map[string]string{"source": "header", "kind": "upgrade"},
		})
	}

	for _, re := range wsPatterns {
		for _, m := range re.FindAllString(content, -1) {
			if strings.Contains(m, "ws://") || strings.Contains(m, "wss://") {
				found = append(found, EndpointInfo{
					URL:        m,
					Type:       TypeWebSocket,
					Confidence: 0.85,
					Details:    map[string]string{"source": "content"},
				})
			}
		}
	}

	return found
}

func (websocketDetector) CommonPaths() []string {
	return []string{
		"/ws", "/websocket", "/socket", "/socket.io",
		"/sockjs", "/realtime", "/live", "/stream",
		"/ws/admin", "/admin/ws", "/api/ws",
	}
}

var graphqlIndicators = []string{
	"graphql", "GraphQL", "__schema", "__type",
	"query {", "mutation {", "subscription {",
	"graphiql", "playground", "apollo",
}

type graphqlDetector struct{}

func (graphqlDetector) Detect(content string, headers http.Header, url string) []EndpointInfo {
	var found []EndpointInfo

	if strings.Contains(headers.Get("Content-Type"), "application/graphql") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeGraphQL,
			Confidence: 0.95,
			Details:    map[string]string{"source": "content_type"},
		})
	}

	count := 0
	for _, ind := range graphqlIndicators {
		if strings.Contains(content, ind) {
			count++
		}
	}
	if count >= 2 {
		conf := 0.5 + float64(count)*0.1
		if conf > 0.9 {
			conf = 0.9
		}
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeGraphQL,
			Confidence: conf,
			Details:    map[string]string{"source": "content"},
		})
	}

	if strings.Contains(content, "__schema") || strings.Contains(content, "__type") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeGraphQL,
			Confidence: 0.95,
			Details:    map[string]string{"source": "schema_detected"},
		})
	}

	return found
}

func (graphqlDetector) CommonPaths() []string {
	return []string{
		"/graphql", "/graphiql", "/api/graphql", "/v1/graphql",
		"/query", "/gql", "/playground", "/explorer",
		"/admin/graphql", "/graphql/admin",
	}
}

var restIndicators = []string{
	"swagger", "openapi", "api-docs", "rest",
	"application/json", "endpoints", "routes",
	`"paths":`, `"info":`, `"swagger":`, `"openapi":`,
	"x-api-key", "authorization",
}

type restDetector struct{}

func (restDetector) Detect(content string, headers http.Header, url string) []EndpointInfo {
	var found []EndpointInfo

	if isAPISpec(content) {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeRESTAPI,
			Confidence: 0.95,
			Details:    map[string]string{"source": "swagger_spec"},
		})
	}

	lower := strings.ToLower(content)
	count := 0
	for _, ind := range restIndicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	if count >= 2 {
		conf := 0.4 + float64(count)*0.1
		if conf > 0.85 {
			conf = 0.85
		}
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeRESTAPI,
			Confidence: conf,
			Details:    map[string]string{"source": "content"},
		})
	}

	if headers.Get("X-Api-Key") != "" || headerKeyPrefix(headers, "X-Ratelimit") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeRESTAPI,
			Confidence: 0.7,
			Details:    map[string]string{"source": "headers"},
		})
	}

	return found
}

func (restDetector) CommonPaths() []string {
	return []string{
		"/api", "/api/v1", "/api/v2", "/api/v3",
		"/rest", "/rest/api", "/v1", "/v2",
		"/api/admin", "/admin/api", "/api/users",
		"/api-docs", "/docs/api", "/swagger",
		"/swagger-ui", "/swagger.json", "/swagger.yaml",
		"/openapi", "/openapi.json", "/openapi.yaml",
		"/redoc", "/api/docs",
	}
}

var soapIndicators = []string{
	"wsdl:", "soap:", "xmlns:soap", "xmlns:wsdl",
	"soap:Envelope", "wsdl:definitions", "targetNamespace",
	"soap:Body", "portType", "binding",
}

type soapDetector struct{}

func (soapDetector) Detect(content string, headers http.Header, url string) []EndpointInfo {
	var found []EndpointInfo

	contentType := headers.Get("Content-Type")
	if strings.Contains(contentType, "text/xml") || strings.Contains(contentType, "application/soap+xml") {
		for _, ind := range soapIndicators {
			if strings.Contains(content, ind) {
				found = append(found, EndpointInfo{
					URL:        url,
					Type:       TypeSOAP,
					Confidence: 0.9,
					Details:    map[string]string{"source": "content_type_and_content"},
				})
				break
			}
		}
	}

	if strings.Contains(content, "wsdl:definitions") || strings.Contains(content, "<definitions") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeSOAP,
			Confidence: 0.95,
			Details:    map[string]string{"source": "wsdl_detected"},
		})
	}

	if strings.Contains(content, "soap:Envelope") || strings.Contains(content, "SOAP-ENV:Envelope") {
		found = append(found, EndpointInfo{
			URL:        url,
			Type:       TypeSOAP,
			Confidence: 0.9,
			Details:    map[string]string{"source": "soap_envelope"},
		})
	}

	return found
}

func (soapDetector) CommonPaths() []string {
	return []string{
		"/soap", "/wsdl", "/service.wsdl", "/services",
		"/ws", "/webservice", "/webservices",
		"/asmx", "/axis", "/axis2", "/cxf",
	}
}

// Analyzer owns the detector set. Constructed explicitly and injected into
// the orchestrator; no package-level singleton.
type Analyzer struct {
	detectors map[EndpointType]Detector
}

// NewAnalyzer builds an Analyzer with all four detectors.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		detectors: map[EndpointType]Detector{
			TypeWebSocket: websocketDetector{},
			TypeGraphQL:   graphqlDetector{},
			TypeRESTAPI:   restDetector{},
			TypeSOAP:      soapDetector{},
		},
	}
}

// DetectAll runs every detector independently over one response.
func (a *Analyzer) DetectAll(content string, headers http.Header, url string) map[EndpointType][]EndpointInfo {
	out := make(map[EndpointType][]EndpointInfo, len(a.detectors))
	for t, d := range a.detectors {
		out[t] = d.Detect(content, headers, url)
	}
	return out
}

// AllPaths returns the deduplicated union of every detector's common paths.
func (a *Analyzer) AllPaths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range a.detectors {
		for _, p := range d.CommonPaths() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// isAPISpec reports whether content parses as a Swagger/OpenAPI document.
func isAPISpec(content string) bool {
	if !strings.Contains(content, `"swagger"`) && !strings.Contains(content, `"openapi"`) {
		return false
	}
	var spec map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &spec); err != nil {
		return false
	}
	_, hasSwagger := spec["swagger"]
	_, hasOpenAPI := spec["openapi"]
	return hasSwagger || hasOpenAPI
}

func headerKeyPrefix(headers http.Header, prefix string) bool {
	for k := range headers {
		if strings.HasPrefix(strings.ToLower(k), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}
