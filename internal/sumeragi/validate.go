package sumeragi

import (
	"fmt"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// ShadowValidate re-executes a candidate block's claimed committed and
// rejected transactions against a clone of world, confirming the proposer's
// classification is one every honest peer would reach independently
// (spec.md §4.6 step 3: "execute block against a shadow WSV to compute
// expected rejection set; if consistent, sign"). world itself is never
// mutated.
func ShadowValidate(world *wsv.WSV, block core.SignedBlock) error {
	shadow := world.Clone()
	now := block.Payload.Header.Timestamp

	for _, tx := range block.Payload.Transactions {
		if err := shadow.ApplyTransaction(now, tx); err != nil {
			return fmt.Errorf("sumeragi: declared-committed transaction %s failed shadow execution: %w", tx.Hash(), err)
		}
	}
	for _, rej := range block.Payload.Rejected {
		if err := shadow.ApplyTransaction(now, rej.Transaction); err == nil {
			return fmt.Errorf("sumeragi: declared-rejected transaction %s succeeded under shadow execution", rej.Transaction.Hash())
		}
	}
	return nil
}
