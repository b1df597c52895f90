package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/jobsearch-cli/internal/registry"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported job boards",
	RunE: func(cmd *cobra.Command, _ []string) error {
		region, _ := cmd.Flags().GetString("region")

		// Metadata only; the clients are never called.
		reg, err := registry.Default(registry.Options{Providers: cfg.Providers})
		if err != nil {
			return err
		}

		list := reg.AllMetadata()
		if region != "" {
			list = reg.ByRegion(strings.ToUpper(region))
		}
		formatProviders(os.Stdout, list)
		return nil
	},
}

func init() {
	providersCmd.Flags().String("region", "", "only boards serving this region (e.g. US, GB)")
	rootCmd.AddCommand(providersCmd)
}
