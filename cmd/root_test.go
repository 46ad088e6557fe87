package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nscon-gmbh/umbrella-reporting/internal/testutil"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/umbrella"
)

func init() {
	color.NoColor = true
}

// setupEnv points the configuration at srv with fast retries.
func setupEnv(t *testing.T, srv *testutil.Server) {
	t.Helper()
	env := map[string]string{
		"API_KEY":            testutil.ClientID,
		"API_SECRET":         testutil.ClientSecret,
		"TOKEN_URL":          srv.TokenURL(),
		"REPORT_URL":         srv.ReportURL(),
		"ORG_ID":             "",
		"CATEGORIES_URL":     "",
		"LOG_LEVEL":          "error",
		"PAGE_LIMIT":         "",
		"RETRY_MAX_ATTEMPTS": "2",
		"RETRY_BASE_DELAY":   "1ms",
		"RETRY_MAX_DELAY":    "5ms",
		"RATE_LIMIT_RPS":     "",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func securityCategories() []any {
	return []any{
		map[string]any{"id": 68, "label": "Malware", "type": "security"},
		map[string]any{"id": 66, "label": "Phishing", "type": "security"},
		map[string]any{"id": 23, "label": "Sports", "type": "content"},
	}
}

func activityEvent(identity, domain, date, verdict string, categoryID int, category string) any {
	return map[string]any{
		"domain":     domain,
		"date":       date,
		"time":       "10:00:00",
		"verdict":    verdict,
		"identities": []any{map[string]any{"id": 1, "label": identity}},
		"categories": []any{map[string]any{"id": categoryID, "label": category, "type": "security"}},
	}
}

func TestRootCommand(t *testing.T) {
	rootCmd := NewRootCmd()
	assert.Equal(t, "umbrella", rootCmd.Use)

	for _, name := range []string{"env-file", "config", "log-level", "output"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag %s", name)
	}

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"report", "categories", "auth", "version"})
}

func TestReportCmdFlags(t *testing.T) {
	cmd := createReportCmd(&app{})
	assert.Equal(t, "report", cmd.Use)

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"from_date", "f", ""},
		{"to_date", "t", "now"},
		{"report_type", "r", ""},
		{"verdict", "", ""},
		{"limit", "", "0"},
		{"html", "", ""},
	}
	assert.Contains(t, cmd.Flags().Lookup("report_type").Usage, "deployment, activity")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := cmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.shorthand, flag.Shorthand)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestReportDeployment(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("deployment-status", []any{
		map[string]any{"type": map[string]any{"type": "roaming", "label": "Windows"}, "activecount": 3, "count": 10},
	})

	code, out, stderr := execute(t, "report", "-r", "deployment", "-f", "-7days")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, out, "Deployment Status between -7days and now")
	assert.Contains(t, out, "Windows")
	assert.Equal(t, 1, srv.TokenCalls())

	reqs := srv.RequestsFor("deployment-status")
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]string{"from": "-7days", "to": "now", "limit": "100", "offset": "0"}, reqs[0].Query)
	assert.Equal(t, testutil.AccessToken, reqs[0].Bearer)
	assert.Empty(t, srv.RequestsFor("categories"))
}

func TestReportDeploymentPaginates(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("deployment-status", testutil.Page(5))

	code, out, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days", "--limit", "2", "-o", "json")
	require.Equal(t, 0, code, stderr)

	var got struct {
		Title string  `json:"title"`
		Rows  [][]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Deployment Status between -1days and now", got.Title)
	assert.Len(t, got.Rows, 5)

	reqs := srv.RequestsFor("deployment-status")
	require.Len(t, reqs, 3)
	for i, r := range reqs {
		assert.Equal(t, fmt.Sprint(i*2), r.Query["offset"])
		assert.Equal(t, "2", r.Query["limit"])
	}
}

func TestReportActivity(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("categories", securityCategories())
	srv.SetItems("activity", []any{
		activityEvent("alice", "example.com", "2024-01-05", "blocked", 68, "Malware"),
		activityEvent("alice", "example.com", "2024-01-03", "blocked", 66, "Phishing"),
		activityEvent("bob", "evil.example", "2024-01-04", "blocked", 68, "Malware"),
	})

	code, out, stderr := execute(t, "report", "-r", "activity", "-f", "-7days", "--verdict", "Blocked")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, out, "Activity between -7days and now")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "2024-01-05")
	assert.Contains(t, out, "Events: 3, blocked: 3")
	assert.Less(t, strings.Index(out, "alice"), strings.Index(out, "bob"))

	require.Len(t, srv.RequestsFor("categories"), 1)
	reqs := srv.RequestsFor("activity")
	require.Len(t, reqs, 1)
	assert.Equal(t, "66,68", reqs[0].Query["categories"])
	assert.Equal(t, "blocked", reqs[0].Query["verdict"])
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestReportActivityWithoutSecurityCategories(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("categories", []any{map[string]any{"id": 23, "label": "Sports", "type": "content"}})
	srv.SetItems("activity", []any{})

	code, out, stderr := execute(t, "report", "-r", "activity", "-f", "-1days")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "No results.")

	reqs := srv.RequestsFor("activity")
	require.Len(t, reqs, 1)
	_, filtered := reqs[0].Query["categories"]
	assert.False(t, filtered)
	_, hasVerdict := reqs[0].Query["verdict"]
	assert.False(t, hasVerdict)
}

func TestReportTrimsAbsoluteDates(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.Script("deployment-status", testutil.Response{Body: map[string]any{"data": nil}})

	code, out, stderr := execute(t, "report", "-r", "deployment", "-f", " 1700000000", "-t", "1700086400 ")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "No results.")

	reqs := srv.RequestsFor("deployment-status")
	require.Len(t, reqs, 1)
	assert.Equal(t, "1700000000", reqs[0].Query["from"])
	assert.Equal(t, "1700086400", reqs[0].Query["to"])
}

func TestReportHTML(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("deployment-status", []any{
		map[string]any{"type": map[string]any{"label": "Windows"}, "activecount": 3, "count": 10},
	})
	path := filepath.Join(t.TempDir(), "report.html")

	code, out, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days", "--html", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "HTML report written to "+path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<td>Windows</td>")
}

func TestReportMarkdown(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("deployment-status", []any{
		map[string]any{"type": map[string]any{"label": "Windows"}, "activecount": 3, "count": 10},
	})

	code, out, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days", "--output", "markdown")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "## Deployment Status between -1days and now")
	assert.Contains(t, out, "| Windows")
}

func TestReportArgumentErrorsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing from", []string{"report", "-r", "deployment"}, "--from_date is required"},
		{"missing type", []string{"report", "-f", "-1days"}, "--report_type is required"},
		{"bad type", []string{"report", "-r", "destinations", "-f", "-1days"}, "report type"},
		{"bad date", []string{"report", "-r", "deployment", "-f", "yesterday"}, "neither a relative time"},
		{"future date", []string{"report", "-r", "deployment", "-f", "1", "-t", "99999999999"}, "in the future"},
		{"mixed kinds", []string{"report", "-r", "deployment", "-f", "-1days", "-t", "1700000000"}, "both be relative or both absolute"},
		{"bad verdict", []string{"report", "-r", "activity", "-f", "-1days", "--verdict", "maybe"}, "verdict"},
		{"negative limit", []string{"report", "-r", "deployment", "-f", "-1days", "--limit", "-1"}, "must not be negative"},
		{"bad output", []string{"report", "-r", "deployment", "-f", "-1days", "-o", "csv"}, "output format"},
		{"unknown flag", []string{"report", "--nope"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewServer(t)
			setupEnv(t, srv)

			code, _, stderr := execute(t, tt.args...)
			assert.Equal(t, 2, code)
			assert.True(t, strings.HasPrefix(stderr, "Error: "), stderr)
			assert.Contains(t, stderr, tt.want)
			assert.Zero(t, srv.TokenCalls())
			assert.Empty(t, srv.Requests())
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	t.Setenv("API_KEY", "")
	t.Setenv("API_SECRET", "")

	code, _, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "API_KEY is required")
	assert.Contains(t, stderr, "API_SECRET is required")
	assert.Zero(t, srv.TokenCalls())
}

func TestReportRetryBudgetExceeded(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.Script("deployment-status", testutil.Response{Status: http.StatusTooManyRequests})

	code, _, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "retry budget exceeded")
	assert.Len(t, srv.RequestsFor("deployment-status"), 2)
}

func TestReportMalformedResponse(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.Script("deployment-status", testutil.Response{Body: map[string]any{"items": []any{}}})

	code, _, stderr := execute(t, "report", "-r", "deployment", "-f", "-1days")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "malformed response")
}

func TestAuthCmd(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)

	code, out, stderr := execute(t, "auth")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Authenticated")
	assert.Contains(t, out, "Token type: bearer")
	assert.NotContains(t, out, testutil.AccessToken)
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestAuthCmdRejected(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetTokenResponse(http.StatusUnauthorized, map[string]string{"error": "invalid_client"})

	code, _, stderr := execute(t, "auth")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "authentication failed")
}

func TestCategoriesCmd(t *testing.T) {
	srv := testutil.NewServer(t)
	setupEnv(t, srv)
	srv.SetItems("categories", securityCategories())

	code, out, stderr := execute(t, "categories")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Malware")
	assert.Contains(t, out, "Phishing")
	assert.NotContains(t, out, "Sports")

	code, out, stderr = execute(t, "categories", "--all")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Sports")
	assert.Contains(t, out, "content")
}

func TestVersionCmdNeedsNoConfig(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("API_SECRET", "")

	code, out, _ := execute(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "umbrella dev\n", out)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(fmt.Errorf("wrap: %w", errs.ErrConfig)))
	assert.Equal(t, 2, exitCode(errs.ErrInvalidArgument))
	assert.Equal(t, 1, exitCode(errs.ErrAuthentication))
	assert.Equal(t, 1, exitCode(errs.ErrRetryBudgetExceeded))
	assert.Equal(t, 1, exitCode(&umbrella.APIError{StatusCode: http.StatusBadRequest}))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}
