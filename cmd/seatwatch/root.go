package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	baseURLKey        = "base_url"
	maxRetriesKey     = "max_retries"
	baseRetryDelayKey = "base_retry_delay"
	maxRetryDelayKey  = "max_retry_delay"
	verboseKey        = "verbose"
)

// newRootCmd builds the command tree.  Every flag can also be set through
// a SEATWATCH_ environment variable, e.g. SEATWATCH_BASE_URL.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SEATWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "seatwatch",
		Short:        "Watch live seat availability of a cinema showing",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("base-url", "http://localhost:8080", "base URL of the cinema API")
	pf.Int("max-retries", 5, "reconnect attempts before giving up")
	pf.Duration("base-retry-delay", time.Second, "initial reconnect delay, doubled per attempt")
	pf.Duration("max-retry-delay", 10*time.Second, "upper bound for the reconnect delay")
	pf.BoolP("verbose", "v", false, "log connection details to stderr")

	_ = v.BindPFlag(baseURLKey, pf.Lookup("base-url"))
	_ = v.BindPFlag(maxRetriesKey, pf.Lookup("max-retries"))
	_ = v.BindPFlag(baseRetryDelayKey, pf.Lookup("base-retry-delay"))
	_ = v.BindPFlag(maxRetryDelayKey, pf.Lookup("max-retry-delay"))
	_ = v.BindPFlag(verboseKey, pf.Lookup("verbose"))

	root.AddCommand(newWatchCmd(v), newTokenCmd(v))
	return root
}
