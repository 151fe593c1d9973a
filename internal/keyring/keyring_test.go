package keyring

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestKeyExchangeRoundTrip(t *testing.T) {
	// Two rings generate independent keypairs and derive the same secret.
	alice := New()
	aliceKeys, err := alice.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate Alice's key pair: %v", err)
	}

	bob := New()
	bobKeys, err := bob.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate Bob's key pair: %v", err)
	}

	aliceShared, err := alice.SharedSecret(bobKeys.PublicKey)
	if err != nil {
		t.Fatalf("Alice failed to derive shared secret: %v", err)
	}
	bobShared, err := bob.SharedSecret(aliceKeys.PublicKey)
	if err != nil {
		t.Fatalf("Bob failed to derive shared secret: %v", err)
	}

	if !bytes.Equal(aliceShared, bobShared) {
		t.Fatalf("Shared secrets don't match")
	}
	if len(aliceShared) != 32 {
		t.Fatalf("Expected 32-byte shared secret, got %d", len(aliceShared))
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice := New()
	aliceKeys, err := alice.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	bob := New()
	bobKeys, err := bob.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	aliceShared, err := alice.SharedSecret(bobKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}
	bobShared, err := bob.SharedSecret(aliceKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}

	payloads := [][]byte{
		[]byte("hello"),
		[]byte(""),
		[]byte(`{"messagetype":"text","message":"拜托","timestamp":1}`),
		{0x00, 0xff, 0x10, 0x80},
	}

	for _, plaintext := range payloads {
		ciphertext, err := EncryptPayload(aliceShared, plaintext)
		if err != nil {
			t.Fatalf("Failed to encrypt: %v", err)
		}

		// Bob decrypts with his independently derived secret.
		decrypted, err := DecryptPayload(bobShared, ciphertext)
		if err != nil {
			t.Fatalf("Failed to decrypt: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("Round trip mismatch: expected %q, got %q", plaintext, decrypted)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	alice := New()
	if _, err := alice.CreateKeyPair(); err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	bob := New()
	bobKeys, err := bob.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	eve := New()
	eveKeys, err := eve.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	rightSecret, err := alice.SharedSecret(bobKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}
	wrongSecret, err := alice.SharedSecret(eveKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}

	ciphertext, err := EncryptPayload(rightSecret, []byte("secret message"))
	if err != nil {
		t.Fatalf("Failed to encrypt: %v", err)
	}

	if _, err := DecryptPayload(wrongSecret, ciphertext); err == nil {
		t.Fatalf("Decryption with the wrong key must fail")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	alice := New()
	if _, err := alice.CreateKeyPair(); err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	bob := New()
	bobKeys, err := bob.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	shared, err := alice.SharedSecret(bobKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}

	if _, err := DecryptPayload(shared, "not-even-base64!"); err == nil {
		t.Fatalf("Garbage ciphertext must fail to decrypt")
	}
	if _, err := DecryptPayload(shared, "c2hvcnQ="); err == nil {
		t.Fatalf("Truncated ciphertext must fail to decrypt")
	}
}

func TestSharedSecretWithoutKeyPair(t *testing.T) {
	ring := New()
	if ring.HasSecretKey() {
		t.Fatalf("Fresh ring must have no secret key")
	}

	_, err := ring.SharedSecret("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	if !errors.Is(err, ErrNoSecretKey) {
		t.Fatalf("Expected ErrNoSecretKey, got %v", err)
	}
}

func TestPublicationArtifactVerifies(t *testing.T) {
	ring := New()
	keyPair, err := ring.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	if !VerifyPublication(keyPair) {
		t.Fatalf("Fresh publication artifact must verify")
	}
	if keyPair.VersionHash != VersionHash(keyPair.PublicKey) {
		t.Fatalf("Version hash mismatch")
	}
	if keyPair.SignPublic == keyPair.PublicKey {
		t.Fatalf("Signing key and exchange key must be separate pairs")
	}

	// Tampering with the published key must break the signature.
	tampered := *keyPair
	tampered.PublicKey = keyPair.SignPublic
	tampered.VersionHash = VersionHash(tampered.PublicKey)
	if VerifyPublication(&tampered) {
		t.Fatalf("Tampered artifact must not verify")
	}
}

func TestFreshKeyPairReplacesSecret(t *testing.T) {
	ring := New()
	first, err := ring.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	second, err := ring.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	if first.PublicKey == second.PublicKey {
		t.Fatalf("Two generations must produce distinct keypairs")
	}

	// The ring now derives with the second secret: a peer using the first
	// public key no longer agrees.
	peer := New()
	peerKeys, err := peer.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	ours, err := ring.SharedSecret(peerKeys.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}
	theirsSecond, err := peer.SharedSecret(second.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}
	theirsFirst, err := peer.SharedSecret(first.PublicKey)
	if err != nil {
		t.Fatalf("Failed to derive shared secret: %v", err)
	}

	if !bytes.Equal(ours, theirsSecond) {
		t.Fatalf("Current keypair must agree with peer derivation")
	}
	if bytes.Equal(ours, theirsFirst) {
		t.Fatalf("Stale public key must not agree with the fresh secret")
	}
}

func TestResetDiscardsSecret(t *testing.T) {
	ring := New()
	if _, err := ring.CreateKeyPair(); err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	ring.Reset()
	if ring.HasSecretKey() {
		t.Fatalf("Reset ring must have no secret key")
	}
	if _, err := ring.SharedSecret("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="); !errors.Is(err, ErrNoSecretKey) {
		t.Fatalf("Expected ErrNoSecretKey after reset, got %v", err)
	}
}

func TestConcurrentRingAccess(t *testing.T) {
	// Key rotation races with derivation and inspection in a live session:
	// the read loop republishes while arriving messages derive secrets.
	// Run with -race.
	ring := New()
	if _, err := ring.CreateKeyPair(); err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	peer := New()
	peerKeys, err := peer.CreateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}

	const iterations = 50
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if _, err := ring.CreateKeyPair(); err != nil {
				t.Errorf("Failed to generate key pair: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if !ring.HasSecretKey() {
				continue
			}
			if _, err := ring.SharedSecret(peerKeys.PublicKey); err != nil && !errors.Is(err, ErrNoSecretKey) {
				t.Errorf("Failed to derive shared secret: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			ring.Reset()
		}
	}()
	wg.Wait()
}
