// Package cryptox implements the credential vault: per-owner symmetric
// encryption of connection secrets at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// MinSecretLength is the shortest process secret NewVault accepts.
	MinSecretLength = 16

	nonceSize = 16
	tagSize   = 16
	keySize   = 32
)

// vaultSalt is fixed; per-owner separation comes from mixing the owner id
// into the KDF input.
var vaultSalt = []byte("crosspost-credential-vault")

// DeriveOwnerKey derives the 256-bit AES key for one owner from the process
// secret using Argon2id.
func DeriveOwnerKey(secret []byte, ownerID string) []byte {
	input := make([]byte, 0, len(secret)+len(ownerID))
	input = append(input, secret...)
	input = append(input, ownerID...)
	key := argon2.IDKey(input, vaultSalt, 1, 64*1024, 4, keySize)
	common.WipeByteArray(input)
	return key
}

// Vault encrypts and decrypts opaque credential blobs. It holds no state
// beyond the process secret and is safe for concurrent use.
type Vault struct {
	secret []byte
}

// NewVault validates the process secret and returns a Vault.
//
// The secret must be at least MinSecretLength bytes long; anything shorter
// is reported as common.ErrConfiguration so startup can abort before any
// request is served.
func NewVault(secret string) (*Vault, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: vault secret must be at least %d bytes", common.ErrConfiguration, MinSecretLength)
	}
	return &Vault{secret: []byte(secret)}, nil
}

func (v *Vault) aead(ownerID string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveOwnerKey(v.secret, ownerID))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Encrypt seals plaintext under the key of ownerID.
//
// Output is base64(nonce || tag || ciphertext) with a fresh random 16-byte
// nonce per call, so two encryptions of the same input never match.
func (v *Vault) Encrypt(plaintext []byte, ownerID string) (string, error) {
	gcm, err := v.aead(ownerID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// Seal returns ciphertext || tag.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt for the same owner.
//
// Every failure mode (bad base64, truncated payload, failed authentication,
// foreign owner) wraps common.ErrCredential.
func (v *Vault) Decrypt(ciphertext string, ownerID string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", common.ErrCredential, err)
	}
	if len(raw) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: payload too short", common.ErrCredential)
	}

	gcm, err := v.aead(ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCredential, err)
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCredential, err)
	}
	return plaintext, nil
}
