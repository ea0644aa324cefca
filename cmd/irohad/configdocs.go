package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/hyperledger/iroha-sub010/internal/config"
)

func newGenerateConfigDocsCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate-config-docs",
		Short: "Write the default configuration as a TOML starting point",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := toml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("marshaling default config: %w", err)
			}
			if out == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("wrote default configuration to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "irohad.toml", "output path, or - for stdout")
	return cmd
}
