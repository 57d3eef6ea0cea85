package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/browser"
)

var installCmd = &cobra.Command{
	Use:   "install-browser",
	Short: "Download the playwright driver and chromium",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := browser.InstallDriver("chromium"); err != nil {
			return err
		}
		zap.L().Info("playwright driver and chromium installed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
