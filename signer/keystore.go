package signer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// WithKeystoreFile loads the signing key from an encrypted geth keystore
// file.
func WithKeystoreFile(path, password string) Option {
	return func(s *Signer) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: read keystore: %v", x402.ErrSigningFailed, err)
		}

		var keyJSON struct {
			Crypto keystore.CryptoJSON `json:"crypto"`
		}
		if err := json.Unmarshal(data, &keyJSON); err != nil {
			return fmt.Errorf("%w: malformed keystore file", x402.ErrSigningFailed)
		}

		keyBytes, err := keystore.DecryptDataV3(keyJSON.Crypto, password)
		if err != nil {
			return fmt.Errorf("%w: keystore decryption failed", x402.ErrSigningFailed)
		}

		privateKey, err := crypto.ToECDSA(keyBytes)
		if err != nil {
			return fmt.Errorf("%w: keystore holds an invalid key", x402.ErrSigningFailed)
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithMnemonic derives the signing key from a BIP39 mnemonic along the
// standard Ethereum path m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) Option {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return fmt.Errorf("%w: invalid mnemonic", x402.ErrSigningFailed)
		}

		seed := bip39.NewSeed(mnemonic, "")
		masterKey, err := bip32.NewMasterKey(seed)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrSigningFailed, err)
		}

		key := masterKey
		for _, child := range []uint32{
			bip32.FirstHardenedChild + 44, // purpose
			bip32.FirstHardenedChild + 60, // ether coin type
			bip32.FirstHardenedChild + 0,  // account
			0,                             // external chain
			accountIndex,
		} {
			if key, err = key.NewChildKey(child); err != nil {
				return fmt.Errorf("%w: key derivation failed: %v", x402.ErrSigningFailed, err)
			}
		}

		privateKey, err := crypto.ToECDSA(key.Key)
		if err != nil {
			return fmt.Errorf("%w: derived key is invalid", x402.ErrSigningFailed)
		}

		s.privateKey = privateKey
		return nil
	}
}
