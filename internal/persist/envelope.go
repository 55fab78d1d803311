package persist

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// envelope is the on-disk encryption wrapper. The algorithm and KDF tags are
// stored so future formats can coexist with old snapshots.
type envelope struct {
	Alg        string `json:"alg"`
	KDF        string `json:"kdf"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const (
	envelopeAlg = "xchacha20poly1305"
	envelopeKDF = "argon2id"
)

// argon2id parameters: 64 MiB, 1 pass, 4 lanes. Interactive-login grade,
// fine for a local snapshot unlocked once per app start.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

// seal encrypts the serialized snapshot under a passphrase-derived key.
func seal(plain []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	env := envelope{
		Alg:        envelopeAlg,
		KDF:        envelopeKDF,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plain, nil),
	}
	return json.Marshal(env)
}

// openSealed returns the plaintext document. Unencrypted documents pass
// through untouched; encrypted ones require the right passphrase or the call
// fails with ErrCannotDecrypt.
func openSealed(data []byte, passphrase string) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Alg == "" {
		// Not an envelope: plain serialized snapshot.
		return data, nil
	}
	if env.Alg != envelopeAlg || env.KDF != envelopeKDF {
		return nil, fmt.Errorf("%w: unsupported envelope %s/%s", ErrCannotDecrypt, env.Alg, env.KDF)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: snapshot is encrypted but no passphrase is configured", ErrCannotDecrypt)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("%w: malformed nonce", ErrCannotDecrypt)
	}
	plain, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrCannotDecrypt)
	}
	return plain, nil
}
