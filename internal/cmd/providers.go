package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Xiaobuyudesu/assistor/internal/chatlink"
	"github.com/Xiaobuyudesu/assistor/internal/config"
	errwrap "github.com/Xiaobuyudesu/assistor/internal/errors"
	"github.com/Xiaobuyudesu/assistor/internal/output"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the effective upstream provider configuration",
	Long: `Show the effective upstream provider configuration after defaults,
config file, and environment variables are applied.

API keys are shown as present or missing, never as values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration load failed")
		}

		fmt.Println(output.FormatProviders(chatlink.Describe(cfg.Chat)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
