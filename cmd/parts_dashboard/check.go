package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/parts-dashboard/internal/llm"
)

var checkOffline bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and test the database and Zuper API connections",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkOffline, "offline", false, "Skip the Zuper API connection test")
	rootCmd.AddCommand(checkCmd)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func report(out io.Writer, ok bool, name, detail string) {
	icon := "✅"
	if !ok {
		icon = "❌"
	}
	fmt.Fprintf(out, "%s %-10s %s\n", icon, name, detail)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	a, err := newApp(cmd.Context())
	if err != nil {
		report(out, false, "config", err.Error())
		return err
	}
	defer a.Close()

	source := "defaults and environment"
	if configPath != "" {
		source = configPath
	}
	report(out, true, "config", source)

	failed := 0
	if err := a.db.Ping(cmd.Context()); err != nil {
		report(out, false, "database", err.Error())
		failed++
	} else {
		report(out, true, "database", a.cfg.Database.Driver)
	}

	switch {
	case a.zuper == nil:
		report(out, false, "zuper", "not configured (set ZUPER_API_KEY, ZUPER_ORG_UID and ZUPER_BASE_URL)")
		failed++
	case checkOffline:
		report(out, true, "zuper", "configured, connection not tested")
	default:
		if err := a.zuper.TestConnection(cmd.Context()); err != nil {
			report(out, false, "zuper", err.Error())
			failed++
		} else {
			report(out, true, "zuper", "connected")
		}
	}

	if err := a.requireAssistant(); err != nil {
		report(out, false, "assistant", err.Error())
	} else {
		report(out, true, "assistant", a.llm.GetModel(llm.TierStandard))
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}
