package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4

	sealedPrefix = "v1:"
)

var ErrDecrypt = errors.New("session token could not be decrypted")

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

// Seal encrypts plaintext with a key derived from passphrase.
// Output: "v1:" + base64([16-byte salt][12-byte nonce][AES-256-GCM ciphertext]).
func Seal(passphrase, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	out := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func Open(passphrase, sealed string) (string, error) {
	if len(sealed) < len(sealedPrefix) || sealed[:len(sealedPrefix)] != sealedPrefix {
		return "", ErrDecrypt
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefix):])
	if err != nil || len(data) < saltSize+nonceSize {
		return "", ErrDecrypt
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, data[saltSize+nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypted wraps a Store and keeps the token sealed at rest.
type Encrypted struct {
	inner      Store
	passphrase string
}

// NewEncrypted returns inner unchanged when passphrase is empty.
func NewEncrypted(inner Store, passphrase string) Store {
	if passphrase == "" {
		return inner
	}
	return &Encrypted{inner: inner, passphrase: passphrase}
}

func (e *Encrypted) Load(ctx context.Context) (Session, error) {
	s, err := e.inner.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	token, err := Open(e.passphrase, s.Token)
	if err != nil {
		return Session{}, err
	}
	s.Token = token
	return s, nil
}

func (e *Encrypted) Save(ctx context.Context, s Session) error {
	sealed, err := Seal(e.passphrase, s.Token)
	if err != nil {
		return fmt.Errorf("seal session token: %w", err)
	}
	s.Token = sealed
	return e.inner.Save(ctx, s)
}

func (e *Encrypted) Clear(ctx context.Context) error {
	return e.inner.Clear(ctx)
}
