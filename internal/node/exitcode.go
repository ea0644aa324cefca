package node

import (
	"context"
	"errors"

	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/sumeragi"
)

// ExitCode maps the error Run returned to the process exit code spec.md §6
// names: 0 clean shutdown, 1 configuration error, 2 storage I/O error, 3
// unrecoverable consensus invariant violation. cmd/irohad's run command is
// the only caller; Run itself never calls os.Exit.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}

	var fatal sumeragi.FatalHaltError
	if errors.As(err, &fatal) {
		return 3
	}

	if errors.Is(err, kura.ErrHeightGap) || errors.Is(err, kura.ErrNotFound) || errors.Is(err, kura.ErrCorruption) {
		return 2
	}

	return 1
}
