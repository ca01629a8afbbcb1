package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <profile-url>",
		Short: "Scrapes one profile page and prints it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := appInstance.Profiles().ResolveAgentProfile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("resolve profile: %w", err)
			}
			appInstance.Logger().Debug("profile resolved", zap.String("name", p.Name))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(p); err != nil {
				return fmt.Errorf("encode profile: %w", err)
			}
			return nil
		},
	}
}
