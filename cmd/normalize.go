package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNormalizeCmd() *cobra.Command {
	var (
		slug string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "normalize <image-file>",
		Short: "Normalizes one headshot image",
		Long: `Crops, resizes and sharpens an image into the canonical headshot.
With --out the JPEG is written to that path; otherwise it is stored through
the configured blob store and the reference is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			if out != "" {
				jpeg, err := appInstance.Normalizer().Normalize(buf)
				if err != nil {
					return fmt.Errorf("normalize image: %w", err)
				}
				if err := os.WriteFile(out, jpeg, 0o644); err != nil { //nolint:gosec // output is a public image
					return fmt.Errorf("write image: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			if slug == "" {
				slug = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			ref, err := appInstance.Headshots().NormalizeHeadshot(cmd.Context(), buf, slug)
			if err != nil {
				return err
			}
			appInstance.Logger().Info("headshot stored", zap.String("slug", slug), zap.String("ref", ref))
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "storage key for the headshot (defaults to the file name)")
	cmd.Flags().StringVar(&out, "out", "", "write the JPEG to this path instead of the blob store")
	return cmd
}
