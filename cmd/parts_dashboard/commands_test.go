package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCommand(t *testing.T) {
	srv := fakeZuper(t, dashboardJobs()...)
	c := newCLI(t).withConfig(t, zuperConfig(srv.URL))

	out := c.mustRun(t, "sync")
	assert.Contains(t, out, "SYNC RUN")
	assert.Contains(t, out, "✅ completed (fetch complete)")
	assert.Contains(t, out, "Fetched:   3")
	assert.Contains(t, out, "Created:   3")

	out = c.mustRun(t, "sync")
	assert.Contains(t, out, "Created:   0")
	assert.Contains(t, out, "Updated:   3")

	out = c.mustRun(t, "status")
	assert.Contains(t, out, "SYNC RUN")
	assert.Contains(t, out, "SYNC HISTORY")
}

func TestSyncCommand_Unavailable(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "", "sync")
	assert.ErrorContains(t, err, "not configured")

	out := c.mustRun(t, "status")
	assert.Contains(t, out, "No sync has run yet")

	srv := fakeZuper(t)
	c.withConfig(t, zuperConfig(srv.URL)+"\n[app.features]\nmanual_sync = false\n")
	_, err = c.run(t, "", "sync")
	assert.ErrorContains(t, err, "manual sync is disabled")
}

func TestJobsCommand(t *testing.T) {
	c := syncedCLI(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
	}{
		{
			name:     "all in scope",
			args:     []string{"jobs"},
			contains: []string{"JOBS (2)", "#1001", "#1002"},
			excludes: []string{"#2001"},
		},
		{
			name:     "priority filter is case-insensitive",
			args:     []string{"jobs", "--priority", "urgent"},
			contains: []string{"JOBS (1)", "#1002"},
			excludes: []string{"#1001"},
		},
		{
			name:     "status list",
			args:     []string{"jobs", "--status", "shipped, parts on order"},
			contains: []string{"JOBS (2)"},
		},
		{
			name:     "search",
			args:     []string{"jobs", "--search", "acme"},
			contains: []string{"JOBS (1)", "#1002"},
		},
		{
			name:     "page size",
			args:     []string{"jobs", "-n", "1"},
			contains: []string{"JOBS (2)", "... and 1 more jobs"},
		},
		{
			name:     "no match",
			args:     []string{"jobs", "--customer", "nobody"},
			contains: []string{"No jobs match"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.mustRun(t, tt.args...)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}

	_, err := c.run(t, "", "jobs", "--offset", "-1")
	assert.ErrorContains(t, err, "must not be negative")
}

func TestShowCommand(t *testing.T) {
	c := syncedCLI(t)

	out := c.mustRun(t, "show", "1002")
	assert.Contains(t, out, "JOB #1002")
	assert.Contains(t, out, "Customer:   Acme BV")
	assert.Contains(t, out, "Priority:   Urgent")

	_, err := c.run(t, "", "show", "2001")
	assert.ErrorContains(t, err, "job not found: 2001")

	_, err = c.run(t, "", "show")
	assert.Error(t, err)
}

func TestLookupCommand(t *testing.T) {
	c := syncedCLI(t)

	out := c.mustRun(t, "lookup", "1001,1002", "9999", "2001")
	assert.Contains(t, out, "Found 2, not found 2")
	assert.Contains(t, out, "9999, 2001")

	out, err := c.run(t, "1001\n1002;\t9999\n", "lookup", "--file", "-")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found 2, not found 1")

	_, err = c.run(t, "", "lookup")
	assert.ErrorContains(t, err, "no job numbers given")

	_, err = c.run(t, "", "lookup", "--file", "/does/not/exist")
	assert.ErrorContains(t, err, "failed to read job numbers")
}

func TestLookupCommand_Disabled(t *testing.T) {
	c := newCLI(t).withConfig(t, "[app.features]\nbulk_lookup = false\n")
	_, err := c.run(t, "", "lookup", "1001")
	assert.ErrorContains(t, err, "bulk lookup is disabled")
}

func TestPartsCommand(t *testing.T) {
	soon := rawJob("1001", "Parts On Order", "Normal", "Bakkerij Smit", 52.37, 4.89)
	soon["scheduled_start_time"] = "2024-04-01T08:00:00Z"
	later := rawJob("1002", "Parts On Order", "Urgent", "Acme BV", 48.85, 2.35)
	later["scheduled_start_time"] = "2024-05-01T08:00:00Z"
	delivered := rawJob("1003", "Parts delivered", "Normal", "Hotel Krasnapolsky", 52.37, 4.89)
	delivered["parts_delivered_date"] = "2024-03-02T14:00:00Z"

	srv := fakeZuper(t, later, delivered, soon)
	c := newCLI(t).withConfig(t, zuperConfig(srv.URL))
	c.mustRun(t, "sync")

	out := c.mustRun(t, "parts")
	assert.Contains(t, out, "Waiting for parts:  2")
	assert.Contains(t, out, "Parts delivered:    1")
	assert.Contains(t, out, "WAITING FOR PARTS (2)")
	assert.Less(t, strings.Index(out, "#1001"), strings.Index(out, "#1002"))
	assert.Contains(t, out, "RECENT DELIVERIES")
	assert.Contains(t, out, "#1003")

	out = c.mustRun(t, "jobs", "--parts", "delivered")
	assert.Contains(t, out, "JOBS (1)")
	assert.Contains(t, out, "#1003")

	out = c.mustRun(t, "jobs", "--parts", "pending")
	assert.Contains(t, out, "JOBS (2)")
	assert.NotContains(t, out, "#1003")

	_, err := c.run(t, "", "jobs", "--parts", "lost")
	assert.ErrorContains(t, err, "pending or delivered")

	_, err = c.run(t, "", "parts", "-n", "-1")
	assert.ErrorContains(t, err, "must not be negative")
}

func TestStatsCommand(t *testing.T) {
	c := syncedCLI(t)

	out := c.mustRun(t, "stats")
	assert.Contains(t, out, "JOB STATISTICS")
	assert.Contains(t, out, "Total jobs:         2")
	assert.Contains(t, out, "Waiting for parts:  2")
	assert.Contains(t, out, "Parts On Order")
	assert.Contains(t, out, "Last synced:")
}

func TestCheckCommand(t *testing.T) {
	srv := fakeZuper(t)
	c := newCLI(t).withConfig(t, zuperConfig(srv.URL))

	out := c.mustRun(t, "check")
	assert.Contains(t, out, "✅ config")
	assert.Contains(t, out, "✅ database   sqlite3")
	assert.Contains(t, out, "✅ zuper      connected")
	assert.Contains(t, out, "❌ assistant")

	out = c.mustRun(t, "check", "--offline")
	assert.Contains(t, out, "connection not tested")

	out, err := newCLI(t).run(t, "", "check")
	assert.ErrorContains(t, err, "1 checks failed")
	assert.Contains(t, out, "❌ zuper      not configured")
}

func TestCheckCommand_InvalidConfig(t *testing.T) {
	c := newCLI(t).withConfig(t, "[app]\nmax_jobs_per_page = 500\n")
	out, err := c.run(t, "", "check")
	assert.ErrorContains(t, err, "config error")
	assert.Contains(t, out, "❌ config")
}

func TestParseJobNumbers(t *testing.T) {
	assert.Equal(t, []string{"1001", "1002", "1003", "1004"}, parseJobNumbers("1001, 1002;1003\n\t1004"))
	assert.Empty(t, parseJobNumbers(" ,; \n"))
}

func TestSplitList(t *testing.T) {
	upper := func(s string) string { return s + "!" }
	assert.Equal(t, []string{"a!", "b!"}, splitList(" a, ,b ", upper))
	assert.Nil(t, splitList("", upper))
}

func TestLoadConfig_DatabaseFlag(t *testing.T) {
	isolateEnv(t)
	configPath = ""
	t.Cleanup(func() { databaseURL, verbose = "", false })

	databaseURL, verbose = "postgres://user@localhost/parts", true
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://user@localhost/parts", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logging.Level)

	databaseURL = "local.db"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}
