// Package vault protects upstream reseller credentials at rest with
// passphrase-derived authenticated encryption.
//
// The passphrase (the reseller id) is not a secret by itself; protection
// relies on salted key derivation plus the storage medium's access control.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/telany/faxrelay/internal/audit"
	pkgcrypto "github.com/telany/faxrelay/internal/crypto"
	"github.com/telany/faxrelay/internal/errs"
	"github.com/telany/faxrelay/internal/model"
)

const (
	// Iterations is the PBKDF2 iteration count for key derivation.
	Iterations = 100_000

	keyLen    = 32
	saltLen   = 16
	nonceLen  = 12
	objectTag = "reseller_blob"
)

// Vault seals and opens credential envelopes.
type Vault struct {
	rec *audit.Recorder
}

// New constructs a Vault that records audit events through rec.
func New(rec *audit.Recorder) *Vault {
	if rec == nil {
		rec = audit.NewRecorder(nil)
	}
	return &Vault{rec: rec}
}

// DeriveKey derives a 256-bit key from passphrase and salt via
// PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)
}

// Encrypt serializes v and seals it under a key derived from passphrase
// with a fresh random salt and nonce. Encrypting the same plaintext twice
// never yields the same envelope.
func (vlt *Vault) Encrypt(passphrase string, v any) (model.Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return model.Envelope{}, vlt.fail("encrypt", fmt.Errorf("serialize: %w", err))
	}
	salt, err := pkgcrypto.RandBytes(saltLen)
	if err != nil {
		return model.Envelope{}, vlt.fail("encrypt", err)
	}
	nonce, err := pkgcrypto.RandBytes(nonceLen)
	if err != nil {
		return model.Envelope{}, vlt.fail("encrypt", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return model.Envelope{}, vlt.fail("encrypt", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	vlt.rec.Event(audit.EnvelopeEncrypted, audit.Op(objectTag, "encrypt"))

	return model.Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Salt:       base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Decrypt opens env under passphrase and unmarshals the plaintext into out.
// A missing field, bad base64, or failed authentication (tamper or wrong
// passphrase) all return errs.ErrCrypto, indistinguishable to the caller.
func (vlt *Vault) Decrypt(passphrase string, env model.Envelope, out any) error {
	if env.Ciphertext == "" || env.Nonce == "" || env.Salt == "" {
		return vlt.fail("decrypt", fmt.Errorf("envelope missing required fields"))
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return vlt.fail("decrypt", fmt.Errorf("ciphertext: %w", err))
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return vlt.fail("decrypt", fmt.Errorf("nonce: %w", err))
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return vlt.fail("decrypt", fmt.Errorf("salt: %w", err))
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return vlt.fail("decrypt", err)
	}
	if len(nonce) != aead.NonceSize() {
		return vlt.fail("decrypt", fmt.Errorf("nonce length %d", len(nonce)))
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return vlt.fail("decrypt", err)
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return vlt.fail("decrypt", fmt.Errorf("deserialize: %w", err))
	}
	return nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase, salt, Iterations))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// fail records a crypto_error audit event and returns ErrCrypto. The
// underlying cause goes to the audit log only, never to the caller.
func (vlt *Vault) fail(op string, cause error) error {
	vlt.rec.Event(audit.CryptoError,
		audit.Op(objectTag, op),
		zap.String("error", cause.Error()),
	)
	return errs.ErrCrypto
}
