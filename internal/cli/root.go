// Package cli holds the geoproxy commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "geoproxy",
	Short: "geocoding proxy with provider failover",
	Long: `
geoproxy answers /?address=<address> requests by querying a primary geocoding
provider and falling back to the secondary providers, in configured order, when
it fails.
`,
	SilenceUsage: true,
}

var Version = "dev"

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) (*zap.SugaredLogger, error) {
	var (
		base *zap.Logger
		err  error
	)
	if env == "development" {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return base.Sugar(), nil
}
