package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperledger/iroha-sub010/internal/core"
)

// instructionSchema names one instruction variant and the payload fields it
// carries, mirroring what original_source's iroha_schema crate emits for
// client codegen: a machine-readable description of the wire tagged union
// in internal/core/instruction.go, without requiring a client to link
// against this module's Go types.
type instructionSchema struct {
	Kind   string   `json:"kind"`
	Tag    int      `json:"tag"`
	Fields []string `json:"fields"`
}

var instructionFields = map[core.InstructionKind][]string{
	core.InstructionRegisterDomain:        {"domain_id"},
	core.InstructionRegisterAccount:       {"account_id"},
	core.InstructionRegisterAssetDefinition: {"asset_definition_id"},
	core.InstructionUnregister:            {"account_id"},
	core.InstructionUnregisterDomain:      {"domain_id"},
	core.InstructionMint:                  {"asset_id", "quantity"},
	core.InstructionBurn:                  {"asset_id", "quantity"},
	core.InstructionTransfer:              {"asset_id", "destination", "quantity"},
	core.InstructionGrant:                 {"destination", "role_id"},
	core.InstructionRevoke:                {"destination", "role_id"},
	core.InstructionSetKeyValue:           {"account_id", "key", "value"},
	core.InstructionRemoveKeyValue:        {"account_id", "key"},
	core.InstructionExecuteTrigger:        {"trigger_id"},
	core.InstructionUpgrade:               {"executor_wasm"},
}

var instructionOrder = []core.InstructionKind{
	core.InstructionRegisterDomain,
	core.InstructionRegisterAccount,
	core.InstructionRegisterAssetDefinition,
	core.InstructionUnregister,
	core.InstructionUnregisterDomain,
	core.InstructionMint,
	core.InstructionBurn,
	core.InstructionTransfer,
	core.InstructionGrant,
	core.InstructionRevoke,
	core.InstructionSetKeyValue,
	core.InstructionRemoveKeyValue,
	core.InstructionExecuteTrigger,
	core.InstructionUpgrade,
}

func newGenerateSchemaCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate-schema",
		Short: "Emit the instruction wire schema as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := make([]instructionSchema, 0, len(instructionOrder))
			for _, kind := range instructionOrder {
				schema = append(schema, instructionSchema{
					Kind:   kind.String(),
					Tag:    int(kind),
					Fields: instructionFields[kind],
				})
			}
			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling schema: %w", err)
			}
			if out == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Printf("wrote instruction schema to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", "output path, or - for stdout")
	return cmd
}
