package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/circlefin/stablecoin-evm-sub003/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// isolate points the data dir, home and working directory at temp dirs and
// clears every role variable.
func isolate(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STABLECOIN_DATADIR", dataDir)
	t.Setenv("STABLECOIN_NETWORK", "")
	t.Setenv("STABLECOIN_SCAN_WINDOWDELAY", "0s")
	for _, r := range config.RoleSettings {
		t.Setenv(r.Env, "")
	}
	return dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
