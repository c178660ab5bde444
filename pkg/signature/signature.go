package signature

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker is the 4-byte sentinel written between the archive bytes and
// the signature. It only guards against signing a file twice; Verify
// never requires it.
var Marker = []byte{0x05, 0x04, 0x07, 0x07}

const (
	// SignatureSize is the length of the appended signature.
	SignatureSize = ed25519.SignatureSize
	// PublicKeySize is the exact length of a key file.
	PublicKeySize = ed25519.PublicKeySize

	markerSize  = 4
	trailerSize = markerSize + SignatureSize

	// KeyExtension replaces the archive extension to name the
	// sibling public key file.
	KeyExtension = ".key"
)

var (
	ErrAlreadySigned      = errors.New("archive already contains a signature marker")
	ErrTooSmall           = errors.New("file is too small to contain a signature")
	ErrVerificationFailed = errors.New("signature verification failed")
)

// KeyPathFor returns the sibling key file path for an archive: same
// stem, key extension.
func KeyPathFor(archivePath string) string {
	ext := filepath.Ext(archivePath)
	return strings.TrimSuffix(archivePath, ext) + KeyExtension
}

// Sign appends Marker plus a 64-byte ed25519 signature over the whole
// file, marker included, using a freshly generated single-use keypair.
// The 32-byte public key is written next to the archive and the private
// half is discarded. A file already carrying the marker at the expected
// tail offset is rejected untouched. Returns the key file path.
func Sign(archivePath string) (string, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}

	if pos := len(data) - trailerSize; pos > 0 &&
		bytes.Equal(data[pos:pos+markerSize], Marker) {
		return "", ErrAlreadySigned
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}

	data = append(data, Marker...)
	data = append(data, ed25519.Sign(priv, data)...)

	if err := os.WriteFile(archivePath, data, 0o644); err != nil {
		return "", fmt.Errorf("write signed archive: %w", err)
	}

	keyPath := KeyPathFor(archivePath)
	if err := os.WriteFile(keyPath, pub, 0o644); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	return keyPath, nil
}

// Verify checks the final 64 bytes of the archive against the 32-byte
// public key at keyPath. Everything before the signature, marker
// included if one is present, is the signed payload.
func Verify(archivePath, keyPath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	if len(data) < SignatureSize {
		return ErrTooSmall
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	if len(key) != PublicKeySize {
		return fmt.Errorf(
			"%w: key file is %d bytes, want %d",
			ErrVerificationFailed, len(key), PublicKeySize,
		)
	}

	payload := data[:len(data)-SignatureSize]
	sig := data[len(data)-SignatureSize:]
	if !ed25519.Verify(ed25519.PublicKey(key), payload, sig) {
		return ErrVerificationFailed
	}
	return nil
}
