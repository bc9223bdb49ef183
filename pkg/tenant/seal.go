package tenant

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// AddressKeySize is the AES-256 key length required by NewAddressSealer.
const AddressKeySize = 32

var (
	// ErrInvalidAddressKey is returned for a sealing key of the wrong length.
	ErrInvalidAddressKey = errors.New("tenant address key must be 32 bytes")

	// ErrSealedAddress is returned when a sealed address cannot be opened.
	ErrSealedAddress = errors.New("cannot open sealed tenant address")
)

// AddressSealer encrypts tenant addresses with AES-256-GCM so credentials
// never reach a shared cache in plaintext.
type AddressSealer struct {
	aead cipher.AEAD
}

// NewAddressSealer creates a sealer from a 32-byte key.
func NewAddressSealer(key []byte) (*AddressSealer, error) {
	if len(key) != AddressKeySize {
		return nil, ErrInvalidAddressKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrInvalidAddressKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrInvalidAddressKey, err)
	}
	return &AddressSealer{aead: aead}, nil
}

// NewAddressSealerFromBase64 decodes a standard base64 key and creates a sealer.
func NewAddressSealerFromBase64(encoded string) (*AddressSealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrInvalidAddressKey, err)
	}
	return NewAddressSealer(key)
}

// Seal returns the base64 ciphertext of address, nonce first.
func (s *AddressSealer) Seal(address string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(address), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *AddressSealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Join(ErrSealedAddress, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", ErrSealedAddress
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", errors.Join(ErrSealedAddress, err)
	}
	return string(plain), nil
}
