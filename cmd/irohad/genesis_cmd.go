package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperledger/iroha-sub010/internal/genesis"
)

func newGenerateGenesisCommand() *cobra.Command {
	var chainID, out string
	cmd := &cobra.Command{
		Use:   "generate-genesis",
		Short: "Generate a fresh genesis document with a new signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := genesis.Generate(chainID)
			if err != nil {
				return fmt.Errorf("generating genesis: %w", err)
			}
			if err := genesis.Save(out, spec); err != nil {
				return fmt.Errorf("saving genesis: %w", err)
			}
			fmt.Printf("wrote genesis document for chain %q to %s\n", chainID, out)
			fmt.Println("edit it to add domains, roles, accounts and asset definitions before first run")
			return nil
		},
	}
	cmd.Flags().StringVar(&chainID, "chain-id", "00000000-0000-0000-0000-000000000000", "chain identifier embedded in the genesis document")
	cmd.Flags().StringVar(&out, "out", "genesis.json", "output path")
	return cmd
}
