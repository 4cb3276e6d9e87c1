// Package crypto implements the master-key lifecycle and the field-level
// authenticated encryption used by the relational store and the
// collection serializer.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/zalando/go-keyring"

	internalerrors "github.com/restbench/core/internal/errors"
	"github.com/restbench/core/internal/secure"
)

const (
	keyBlobVersion = "vxk1:"
	gcmPrefix      = "gcm:"
	fieldPrefix    = "enc:"

	keyringService = "restbench"
	keyringUser    = "master-key-wrap"

	keySize   = 32 // AES-256
	nonceSize = 12 // 96-bit GCM nonce
)

// Manager owns the master key and exposes the encrypt/decrypt contract.
// The key is held in a memguard enclave while in use and is never
// retained as a bare byte slice between calls.
type Manager struct {
	mu     sync.RWMutex
	buffer *secure.SecureBuffer
}

// DefaultDataDir returns the directory the master-key blob and the
// relational store file live under: RESTBENCH_DATA_DIR if set, else
// $XDG_DATA_HOME/restbench, else ~/.local/share/restbench.
func DefaultDataDir() string {
	if override := os.Getenv("RESTBENCH_DATA_DIR"); override != "" {
		return override
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "restbench")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "restbench")
	}
	return filepath.Join(os.TempDir(), "restbench")
}

// InitEncryption loads the master key from keyBlobPath, wrapping and
// persisting a freshly generated one on first use. A legacy plaintext
// blob (no version prefix) is rewrapped and rewritten once.
func InitEncryption(keyBlobPath string) (*Manager, error) {
	raw, err := os.ReadFile(keyBlobPath)
	if os.IsNotExist(err) {
		return bootstrap(keyBlobPath)
	}
	if err != nil {
		return nil, internalerrors.IOError{Op: "read master key blob", Err: err}
	}

	content := string(raw)
	if strings.HasPrefix(content, keyBlobVersion) {
		key, err := unwrapKey(strings.TrimPrefix(content, keyBlobVersion))
		if err != nil {
			return nil, err
		}
		return newManager(key)
	}

	// Legacy plaintext blob: treat the whole file as the raw key, wrap it,
	// and rewrite under the versioned prefix.
	key := raw
	if len(key) != keySize {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "legacy key blob has unexpected length"}
	}
	if err := persistWrapped(keyBlobPath, key); err != nil {
		return nil, err
	}
	return newManager(key)
}

func bootstrap(keyBlobPath string) (*Manager, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "failed to generate master key", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(keyBlobPath), 0o700); err != nil {
		return nil, internalerrors.IOError{Op: "create data directory", Err: err}
	}
	if err := persistWrapped(keyBlobPath, key); err != nil {
		return nil, err
	}
	return newManager(key)
}

func persistWrapped(keyBlobPath string, key []byte) error {
	wrapHandle, err := randomWrapHandle()
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringUser, wrapHandle); err != nil {
		return internalerrors.EncryptionError{Op: "init", Message: "failed to store key-wrap handle in OS keystore", Err: err}
	}

	wrapped, err := wrapWithHandle(wrapHandle, key)
	if err != nil {
		return err
	}

	blob := keyBlobVersion + base64.StdEncoding.EncodeToString(wrapped)
	if err := os.WriteFile(keyBlobPath, []byte(blob), 0o600); err != nil {
		return internalerrors.IOError{Op: "write master key blob", Err: err}
	}
	return nil
}

func unwrapKey(encoded string) ([]byte, error) {
	wrapped, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "malformed master key blob", Err: err}
	}

	wrapHandle, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "failed to read key-wrap handle from OS keystore", Err: err}
	}

	return unwrapWithHandle(wrapHandle, wrapped)
}

func randomWrapHandle() (string, error) {
	buf := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", internalerrors.EncryptionError{Op: "init", Message: "failed to generate key-wrap handle", Err: err}
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// wrapWithHandle/unwrapWithHandle perform the "authenticated encryption by
// a handle held by the OS" step: the wrap handle is itself an AES-256-GCM
// key, stored only in the OS credential store, never on disk.
func wrapWithHandle(handleB64 string, plaintext []byte) ([]byte, error) {
	handle, err := base64.StdEncoding.DecodeString(handleB64)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "malformed key-wrap handle", Err: err}
	}
	return sealGCM(handle, plaintext)
}

func unwrapWithHandle(handleB64 string, ciphertext []byte) ([]byte, error) {
	handle, err := base64.StdEncoding.DecodeString(handleB64)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "malformed key-wrap handle", Err: err}
	}
	return openGCM(handle, ciphertext)
}

func newManager(key []byte) (*Manager, error) {
	buffer, err := secure.NewSecureBuffer(key)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "init", Message: "failed to seal master key", Err: err}
	}
	for i := range key {
		key[i] = 0
	}
	return &Manager{buffer: buffer}, nil
}

// Close wipes the master key from memory. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buffer != nil {
		m.buffer.Destroy()
	}
}

func (m *Manager) withKey(fn func(key []byte) (string, error)) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locked, err := m.buffer.Open()
	if err != nil {
		return "", internalerrors.EncryptionError{Op: "open master key", Message: "key unavailable", Err: err}
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Encrypt produces "gcm:" || base64(nonce‖ciphertext‖tag).
func (m *Manager) Encrypt(plaintext []byte) (string, error) {
	result, err := m.withKey(func(key []byte) (string, error) {
		sealed, err := sealGCM(key, plaintext)
		if err != nil {
			return "", err
		}
		return gcmPrefix + base64.StdEncoding.EncodeToString(sealed), nil
	})
	return result, err
}

// Decrypt dispatches on the ciphertext's sentinel prefix: "gcm:" uses
// AES-256-GCM, anything else is treated as legacy AES-256-CBC
// (decrypt-only).
func (m *Manager) Decrypt(ciphertext string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(ciphertext, gcmPrefix); ok {
		sealed, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "malformed ciphertext encoding", Err: err}
		}
		return m.withKeyBytes(func(key []byte) ([]byte, error) {
			return openGCM(key, sealed)
		})
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "malformed legacy ciphertext encoding", Err: err}
	}
	return m.withKeyBytes(func(key []byte) ([]byte, error) {
		return openCBC(key, sealed)
	})
}

func (m *Manager) withKeyBytes(fn func(key []byte) ([]byte, error)) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locked, err := m.buffer.Open()
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "open master key", Message: "key unavailable", Err: err}
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// EncryptField returns "enc:" || Encrypt(value). It is a no-op (returns
// value unchanged) if value already begins with "enc:" — the
// double-encryption guard.
func (m *Manager) EncryptField(value string) (string, error) {
	if strings.HasPrefix(value, fieldPrefix) {
		return value, nil
	}
	ciphertext, err := m.Encrypt([]byte(value))
	if err != nil {
		return "", err
	}
	return fieldPrefix + ciphertext, nil
}

// DecryptField strips the "enc:" sentinel and decrypts. A value without
// the sentinel is returned unchanged (never-encrypted field).
func (m *Manager) DecryptField(value string) (string, error) {
	rest, ok := strings.CutPrefix(value, fieldPrefix)
	if !ok {
		return value, nil
	}
	plaintext, err := m.Decrypt(rest)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func sealGCM(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "encrypt", Message: "failed to create cipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "encrypt", Message: "failed to create GCM mode", Err: err}
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, internalerrors.EncryptionError{Op: "encrypt", Message: "failed to generate nonce", Err: err}
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openGCM(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "failed to create cipher", Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "failed to create GCM mode", Err: err}
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "ciphertext too short"}
	}

	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "authentication tag mismatch (tamper or key mismatch)", Err: err}
	}
	return plaintext, nil
}

// openCBC decrypts legacy AES-256-CBC blobs: 16-byte IV prepended to
// PKCS#7-padded ciphertext. Decrypt-only; nothing in this module writes
// CBC ciphertext anymore.
func openCBC(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "failed to create cipher", Err: err}
	}

	blockSize := block.BlockSize()
	if len(sealed) < blockSize || len(sealed)%blockSize != 0 {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "legacy ciphertext has invalid length"}
	}

	iv, body := sealed[:blockSize], sealed[blockSize:]
	if len(body) == 0 {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "legacy ciphertext is empty"}
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	plaintext := make([]byte, len(body))
	mode.CryptBlocks(plaintext, body)

	return unpadPKCS7(plaintext)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "legacy ciphertext is empty after decrypt"}
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "legacy ciphertext has invalid padding"}
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, internalerrors.EncryptionError{Op: "decrypt", Message: "legacy ciphertext has invalid padding"}
		}
	}
	return data[:len(data)-padLen], nil
}

// Purge releases all memguard-managed memory. Call once at process exit.
func Purge() {
	memguard.Purge()
}
