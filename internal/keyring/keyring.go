// Package keyring owns the ephemeral Diffie-Hellman material used to encrypt
// message payloads. Key-exchange keys (X25519) and publication-signing keys
// (ed25519) are deliberately separate pairs: the signature proves the
// published key is fresh, not who published it.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/curve25519"
)

const nonceLength = 12 // GCM nonce length

// ErrNoSecretKey is returned when a DH operation is attempted before any
// keypair has been generated for this session.
var ErrNoSecretKey = errors.New("no secret key generated for this session")

// VersionNone is the publickeyversion stamped on messages sent without a
// resolvable peer key.
const VersionNone = "None"

// KeyPair is a freshly generated publication artifact: the X25519 public half
// plus the hash and signature the server stores alongside it.
type KeyPair struct {
	PublicKey   string // base64 X25519 public key
	VersionHash string // hex SHA-256 of the base64 public key
	SignPublic  string // base64 ed25519 public key of the signing pair
	Signature   string // base64 ed25519 signature over VersionHash || PublicKey
}

// Ring holds the session's current secret key. The secret half never leaves
// memory; only the KeyPair artifact is sent to the server. Safe for concurrent
// use: key generation races with decryption of arriving messages.
type Ring struct {
	mu        sync.RWMutex
	secretKey []byte
}

// New creates an empty ring with no key material.
func New() *Ring {
	return &Ring{}
}

// HasSecretKey reports whether a keypair has been generated this session.
func (r *Ring) HasSecretKey() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.secretKey != nil
}

// Reset discards the session's key material without replacing the ring.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secretKey = nil
}

// CreateKeyPair generates a fresh X25519 keypair, retains the secret half,
// and returns the signed publication artifact for the public half.
func (r *Ring) CreateKeyPair() (*KeyPair, error) {
	secret := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	publicB64 := base64.StdEncoding.EncodeToString(public)
	versionHash := VersionHash(publicB64)

	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	signature := ed25519.Sign(signPriv, []byte(versionHash+publicB64))

	r.mu.Lock()
	r.secretKey = secret
	r.mu.Unlock()
	return &KeyPair{
		PublicKey:   publicB64,
		VersionHash: versionHash,
		SignPublic:  base64.StdEncoding.EncodeToString(signPub),
		Signature:   base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// VersionHash computes the hex SHA-256 version marker for a base64-encoded
// public key, as stamped in publickeyversion fields.
func VersionHash(publicKeyB64 string) string {
	sum := sha256.Sum256([]byte(publicKeyB64))
	return hex.EncodeToString(sum[:])
}

// VerifyPublication checks a published keypair artifact against its own
// version hash and signature.
func VerifyPublication(kp *KeyPair) bool {
	if VersionHash(kp.PublicKey) != kp.VersionHash {
		return false
	}
	signPub, err := base64.StdEncoding.DecodeString(kp.SignPublic)
	if err != nil || len(signPub) != ed25519.PublicKeySize {
		return false
	}
	signature, err := base64.StdEncoding.DecodeString(kp.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(signPub, []byte(kp.VersionHash+kp.PublicKey), signature)
}

// SharedSecret derives the symmetric key for a peer from our secret key and
// the peer's base64-encoded public key.
func (r *Ring) SharedSecret(peerPublicKeyB64 string) ([]byte, error) {
	r.mu.RLock()
	secret := r.secretKey
	r.mu.RUnlock()
	if secret == nil {
		return nil, ErrNoSecretKey
	}

	peerPublic, err := base64.StdEncoding.DecodeString(peerPublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}

	shared, err := curve25519.X25519(secret, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	// Fixed-length symmetric key from the raw DH output.
	sum := sha256.Sum256(shared)
	return sum[:], nil
}

// EncryptPayload seals plaintext with AES-GCM under the shared secret and
// returns base64 text suitable for the wire's string-means-ciphertext rule.
func EncryptPayload(sharedSecret, plaintext []byte) (string, error) {
	if len(sharedSecret) == 0 {
		return "", errors.New("encryption key not initialized")
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPayload opens base64 ciphertext produced by EncryptPayload. Failure
// is a per-message error, never fatal to the connection.
func DecryptPayload(sharedSecret []byte, encryptedData string) ([]byte, error) {
	if len(sharedSecret) == 0 {
		return nil, errors.New("encryption key not initialized")
	}

	data, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < nonceLength {
		return nil, errors.New("encrypted data too short")
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := data[:nonceLength]
	ciphertext := data[nonceLength:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}
