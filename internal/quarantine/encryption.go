// Package quarantine implements at-rest-encrypted custodianship of
// neutralized files: AES-256-CBC encryption primitives (FileEncryption) and
// the QuarantineVault lifecycle built on top of them.
package quarantine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"sentinel/internal/sentinelerr"
)

const (
	keySize = 32 // AES-256
	ivSize  = 16 // AES block size
)

// GenerateEncryptionKey returns a cryptographically secure 256-bit key.
func GenerateEncryptionKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "generate encryption key", err)
	}
	return key, nil
}

func generateIV() ([]byte, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "generate iv", err)
	}
	return iv, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "invalid pkcs7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, sentinelerr.New(sentinelerr.InvalidInput, "invalid pkcs7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptData encrypts plaintext with AES-256-CBC under key, returning
// [16-byte IV][PKCS#7-padded ciphertext].
func EncryptData(plaintext, key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "create aes cipher", err)
	}
	iv, err := generateIV()
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, ivSize+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptData reverses EncryptData: it validates the blob is longer than
// the IV, splits IV from ciphertext, decrypts, and strips PKCS#7 padding.
func DecryptData(blob, key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "encryption key must be 32 bytes")
	}
	if len(blob) <= ivSize {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "encrypted blob too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "create aes cipher", err)
	}

	iv := blob[:ivSize]
	ciphertext := blob[ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, sentinelerr.New(sentinelerr.InvalidInput, "ciphertext is not block-aligned")
	}

	plainPadded := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plainPadded, ciphertext)

	return pkcs7Unpad(plainPadded)
}
