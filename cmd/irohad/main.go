// Command irohad is the node entrypoint: it wires internal/node's
// supervisor from a TOML config and drives it until a shutdown signal or an
// unrecoverable error, mapping the result to spec.md §6's exit code table.
// It replaces the teacher's cmd/empower1d/main.go inline runNode()/main()
// with a cobra command tree, keeping the same "one log line per startup
// stage" feel through internal/node's own logging instead of bare log.Println.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperledger/iroha-sub010/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "irohad",
		Short: "Sumeragi consensus node",
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config (defaults to $IROHA_CONFIG or irohad.toml)")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newGenerateGenesisCommand())
	root.AddCommand(newGenerateConfigDocsCommand())
	root.AddCommand(newGenerateSchemaCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath applies spec.md §6's "IROHA_CONFIG=path.toml" env var as
// the fallback when --config was not given.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(config.EnvPrefix + "CONFIG"); env != "" {
		return env
	}
	return "irohad.toml"
}
