package detection

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketUpgradeHeader(t *testing.T) {
	a := NewAnalyzer()
	headers := http.Header{"Upgrade": []string{"websocket"}}

	found := a.DetectAll("", headers, "http://t/ws")[TypeWebSocket]
	require.Len(t, found, 1)
	assert.InDelta(t, 0.9, found[0].Confidence, 0.001)
}

func TestWebSocketContentPattern(t *testing.T) {
	a := NewAnalyzer()
	content := `var sock = new WebSocket("wss://target.example/live");`

	found := a.DetectAll(content, http.Header{}, "http://t/")[TypeWebSocket]
	require.NotEmpty(t, found)
	assert.InDelta(t, 0.85, found[0].Confidence, 0.001)
}

func TestGraphQLContentType(t *testing.T) {
	a := NewAnalyzer()
	headers := http.Header{"Content-Type": []string{"application/graphql"}}

	found := a.DetectAll("", headers, "http://t/graphql")[TypeGraphQL]
	require.NotEmpty(t, found)
	assert.InDelta(t, 0.95, found[0].Confidence, 0.001)
}

func TestGraphQLIndicatorCount(t *testing.T) {
	a := NewAnalyzer()
	content := "graphiql playground for GraphQL queries"

	found := a.DetectAll(content, http.Header{}, "http://t/")[TypeGraphQL]
	require.NotEmpty(t, found)
	assert.LessOrEqual(t, found[0].Confidence, 0.9, "keyword heuristic stays below certainty")
}

func TestRESTSwaggerSpec(t *testing.T) {
	a := NewAnalyzer()
	content := `{"swagger": "2.0", "info": {"title": "Internal API"}, "paths": {}}`

	found := a.DetectAll(content, http.Header{}, "http://t/swagger.json")[TypeRESTAPI]
	require.NotEmpty(t, found)
	assert.InDelta(t, 0.95, found[0].Confidence, 0.001)
}

func TestSOAPWSDL(t *testing.T) {
	a := NewAnalyzer()
	content := `<wsdl:definitions targetNamespace="urn:svc"></wsdl:definitions>`

	found := a.DetectAll(content, http.Header{}, "http://t/service.wsdl")[TypeSOAP]
	require.NotEmpty(t, found)
	assert.InDelta(t, 0.95, found[0].Confidence, 0.001)
}

func TestDetectAllIndependent(t *testing.T) {
	a := NewAnalyzer()
	out := a.DetectAll("nothing interesting", http.Header{}, "http://t/")
	assert.Len(t, out, 4, "all four detectors report, even when empty")
}

func TestAnalyzeAdminPotentialBoostCap(t *testing.T) {
	a := NewAnalyzer()
	// Saturate every axis: role markers, security features, admin endpoint.
	content := strings.Join([]string{
		`role="admin" permission: "admin" isAdmin = true`,
		`user_type: "admin" admin_access`,
		`csrf x-csrf-token __RequestVerificationToken captcha recaptcha two-factor otp`,
		`new WebSocket("wss://x/admin/ws")`,
	}, "\n")

	boost, details := a.AnalyzeAdminPotential(content, "", "http://t/admin", http.Header{})
	assert.InDelta(t, MaxBoost, boost, 0.0001, "boost clamps at 0.4")
	assert.NotEmpty(t, details.AdminIndicators)
	assert.Len(t, details.SecurityFeatures, 7)
}

func TestAnalyzeAdminPotentialNeutralContent(t *testing.T) {
	a := NewAnalyzer()
	boost, details := a.AnalyzeAdminPotential("hello world", "", "http://t/x", http.Header{})
	assert.Zero(t, boost)
	assert.Empty(t, details.AdminIndicators)
	assert.Empty(t, details.SecurityFeatures)
}

func TestScoreLoginFormAdminURL(t *testing.T) {
	a := NewAnalyzer()
	content := `<html><body><form method="post">
		<input name="username"><input type="password" name="password">
	</form></body></html>`

	conf, _ := a.Score(200, content, "", "http://t/admin", http.Header{})
	assert.GreaterOrEqual(t, conf, 0.6)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestScorePlainPageStaysLow(t *testing.T) {
	a := NewAnalyzer()
	conf, _ := a.Score(200, "<html><body>Welcome</body></html>", "", "http://t/news", http.Header{})
	assert.Less(t, conf, 0.5)
}

func TestScoreClampedToOne(t *testing.T) {
	a := NewAnalyzer()
	content := `<form><input type="password"></form> isAdmin=true role=admin
		permission: admin user_type=admin admin_access csrf captcha otp recaptcha`

	conf, _ := a.Score(200, content, "Admin Dashboard", "http://t/admin/login.php", http.Header{})
	assert.LessOrEqual(t, conf, 1.0)
	assert.GreaterOrEqual(t, conf, 0.0)
}

func TestScoreProtectedPage(t *testing.T) {
	a := NewAnalyzer()
	conf401, _ := a.Score(401, "", "", "http://t/x", http.Header{})
	conf200, _ := a.Score(200, "", "", "http://t/x", http.Header{})
	assert.Greater(t, conf401, conf200, "401 outweighs a plain 200")
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Admin Login",
		ExtractTitle("<html><head><title>\n  Admin   Login </title></head></html>"))
	assert.Equal(t, "", ExtractTitle("<html><body>no title</body></html>"))
}

func TestHasLoginForm(t *testing.T) {
	assert.True(t, HasLoginForm(`<form><input type="password"></form>`))
	assert.True(t, HasLoginForm(`<form><input name="username"></form>`))
	assert.False(t, HasLoginForm(`<form><input type="search" name="q"></form>`))
	assert.False(t, HasLoginForm(`no forms at all, just a password mention`))
}

func TestCountForms(t *testing.T) {
	forms, inputs := CountForms(`<form><input><input></form><form><input></form>`)
	assert.Equal(t, 2, forms)
	assert.Equal(t, 3, inputs)
}

func TestDetectTechnologies(t *testing.T) {
	headers := http.Header{
		"Server":       []string{"nginx/1.25"},
		"X-Powered-By": []string{"PHP/8.2"},
		"Set-Cookie":   []string{"PHPSESSID=abc; path=/"},
	}
	body := `<script src="/wp-content/app.js"></script>`

	techs := DetectTechnologies(headers, body)
	assert.Contains(t, techs, "Nginx")
	assert.Contains(t, techs, "PHP")
	assert.Contains(t, techs, "WordPress")

	// PHP must not be reported twice despite two matching signatures.
	count := 0
	for _, name := range techs {
		if name == "PHP" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDetectTechnologiesEmpty(t *testing.T) {
	assert.Empty(t, DetectTechnologies(http.Header{}, "plain page"))
}
