package signer

import (
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// Standard BIP39 test mnemonic and its first derived Ethereum address.
const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testAddress0 = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

func writeKeystoreFile(t *testing.T, password string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	cryptoJSON, err := keystore.EncryptDataV3(crypto.FromECDSA(key), []byte(password),
		keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(struct {
		Crypto keystore.CryptoJSON `json:"crypto"`
	}{Crypto: cryptoJSON})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestWithKeystoreFile(t *testing.T) {
	path, wantAddress := writeKeystoreFile(t, "hunter2")

	s, err := New(
		WithKeystoreFile(path, "hunter2"),
		WithLedger(&fakeLedger{balance: big.NewInt(1), gasPrice: big.NewInt(1)}),
		WithChainID(84532),
	)
	if err != nil {
		t.Fatal(err)
	}
	if s.Address().Hex() != wantAddress {
		t.Errorf("address = %s, want %s", s.Address().Hex(), wantAddress)
	}
}

func TestWithKeystoreFileWrongPassword(t *testing.T) {
	path, _ := writeKeystoreFile(t, "hunter2")

	_, err := New(
		WithKeystoreFile(path, "wrong"),
		WithLedger(&fakeLedger{}),
		WithChainID(84532),
	)
	if !errors.Is(err, x402.ErrSigningFailed) {
		t.Errorf("err = %v, want ErrSigningFailed", err)
	}
}

func TestWithKeystoreFileMissing(t *testing.T) {
	_, err := New(
		WithKeystoreFile(filepath.Join(t.TempDir(), "absent.json"), "pw"),
		WithLedger(&fakeLedger{}),
		WithChainID(84532),
	)
	if !errors.Is(err, x402.ErrSigningFailed) {
		t.Errorf("err = %v, want ErrSigningFailed", err)
	}
}

func TestWithMnemonic(t *testing.T) {
	s, err := New(
		WithMnemonic(testMnemonic, 0),
		WithLedger(&fakeLedger{balance: big.NewInt(1), gasPrice: big.NewInt(1)}),
		WithChainID(84532),
	)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(s.Address().Hex(), testAddress0) {
		t.Errorf("address = %s, want %s", s.Address().Hex(), testAddress0)
	}
}

func TestWithMnemonicAccountIndexChangesAddress(t *testing.T) {
	first, err := New(
		WithMnemonic(testMnemonic, 0),
		WithLedger(&fakeLedger{}),
		WithChainID(84532),
	)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(
		WithMnemonic(testMnemonic, 1),
		WithLedger(&fakeLedger{}),
		WithChainID(84532),
	)
	if err != nil {
		t.Fatal(err)
	}
	if first.Address() == second.Address() {
		t.Error("distinct account indexes derived the same address")
	}
}

func TestWithMnemonicInvalid(t *testing.T) {
	_, err := New(
		WithMnemonic("definitely not a valid mnemonic phrase", 0),
		WithLedger(&fakeLedger{}),
		WithChainID(84532),
	)
	if !errors.Is(err, x402.ErrSigningFailed) {
		t.Errorf("err = %v, want ErrSigningFailed", err)
	}
}
