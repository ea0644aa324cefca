package node

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
)

// LoadOrCreateKeyPair reads this peer's own signing identity from path, or
// generates and persists a fresh one if the file does not exist yet — the
// first-run bootstrap every operator needs and no genesis-scoped key can
// provide, since a genesis signer is shared across peers while a node's own
// identity must not be.
func LoadOrCreateKeyPair(path string) (cryptofacade.KeyPair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return cryptofacade.KeyPair{}, fmt.Errorf("node: key file %s has wrong length %d, expected %d", path, len(data), ed25519.PrivateKeySize)
		}
		priv := ed25519.PrivateKey(data)
		return cryptofacade.KeyPair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
	}
	if !os.IsNotExist(err) {
		return cryptofacade.KeyPair{}, fmt.Errorf("node: reading key file %s: %w", path, err)
	}

	kp, err := cryptofacade.GenerateKeyPair()
	if err != nil {
		return cryptofacade.KeyPair{}, fmt.Errorf("node: generating identity key: %w", err)
	}
	if err := os.WriteFile(path, kp.Private, 0o600); err != nil {
		return cryptofacade.KeyPair{}, fmt.Errorf("node: writing key file %s: %w", path, err)
	}
	return kp, nil
}
