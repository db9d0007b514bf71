package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/llm"
)

// fakeLLM replies with queued answers, then with reply.
type fakeLLM struct {
	mu        sync.Mutex
	replies   []string
	reply     string
	prompts   []string
	histories [][]llm.Message
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		return r, nil
	}
	return f.reply, nil
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateContent(ctx, prompt, tier)
}

func (f *fakeLLM) Chat(ctx context.Context, system string, history []llm.Message, message string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	f.histories = append(f.histories, append([]llm.Message(nil), history...))
	f.mu.Unlock()
	return f.GenerateContent(ctx, message, tier)
}

func (f *fakeLLM) GetModel(tier llm.ModelTier) string { return "fake-model" }
func (f *fakeLLM) Close() error                       { return nil }

// isolateEnv clears every variable the config reads so the host environment
// cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvZuperAPIKey, config.EnvZuperOrgUID, config.EnvZuperBaseURL,
		config.EnvDatabaseURL, config.EnvDatabaseDriver, config.EnvGeminiAPIKey, config.EnvServerPort,
	} {
		t.Setenv(key, "")
	}
	t.Setenv(config.EnvLogLevel, "error")
}

// useFakeLLM makes the commands build their assistant on fake.
func useFakeLLM(t *testing.T, fake *fakeLLM) {
	t.Helper()
	t.Setenv(config.EnvGeminiAPIKey, "test-key")
	original := newLLMClient
	newLLMClient = func(ctx context.Context, cfg *llm.Config, apiKey string) (llm.Client, error) {
		return fake, nil
	}
	t.Cleanup(func() { newLLMClient = original })
}

// resetFlags puts every flag back to its default between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type cli struct {
	dbPath     string
	configPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	isolateEnv(t)
	return &cli{dbPath: filepath.Join(t.TempDir(), "dashboard.db")}
}

// withConfig writes a TOML config file used by every later run.
func (c *cli) withConfig(t *testing.T, toml string) *cli {
	t.Helper()
	c.configPath = filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(c.configPath, []byte(toml), 0o600))
	return c
}

func (c *cli) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return c.runContext(context.Background(), stdin, args...)
}

func (c *cli) runContext(ctx context.Context, stdin string, args ...string) (string, error) {
	resetFlags(rootCmd)

	full := []string{"--db-url", c.dbPath}
	if c.configPath != "" {
		full = append(full, "--config", c.configPath)
	}
	full = append(full, args...)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(full)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func rawJob(number, status, priority, customer string, lat, lon float64) map[string]any {
	return map[string]any{
		"job_uid":            "uid-" + number,
		"job_number":         number,
		"job_title":          "Job " + number,
		"job_category":       map[string]any{"category_name": config.DefaultJobCategory},
		"current_job_status": status,
		"job_priority":       priority,
		"customer_name":      customer,
		"latitude":           lat,
		"longitude":          lon,
	}
}

// fakeZuper serves one page of jobs and the organization endpoint.
func fakeZuper(t *testing.T, jobs ...map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")

		var body any
		switch r.URL.Path {
		case "/organizations/org-1":
			body = map[string]any{"type": "success", "data": map[string]any{"organization_uid": "org-1"}}
		case "/organizations/org-1/jobs":
			body = map[string]any{
				"type":       "success",
				"data":       jobs,
				"pagination": map[string]any{"currentPage": 1, "totalPages": 1},
			}
		default:
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func zuperConfig(baseURL string) string {
	return fmt.Sprintf("[zuper]\napi_key = \"test-key\"\norg_uid = \"org-1\"\nbase_url = %q\n", baseURL)
}

// dashboardJobs are two in-scope jobs and one outside Europe.
func dashboardJobs() []map[string]any {
	return []map[string]any{
		rawJob("1001", "Parts On Order", "Normal", "Customer 1001", 52.37, 4.89),
		rawJob("1002", "Parts On Order", "Urgent", "Acme BV", 48.85, 2.35),
		rawJob("2001", "Parts On Order", "Urgent", "Far Away Inc", 40.71, -74.0),
	}
}

// syncedCLI returns a CLI whose store already holds dashboardJobs.
func syncedCLI(t *testing.T) *cli {
	t.Helper()
	srv := fakeZuper(t, dashboardJobs()...)
	c := newCLI(t).withConfig(t, zuperConfig(srv.URL))
	c.mustRun(t, "sync")
	return c
}
