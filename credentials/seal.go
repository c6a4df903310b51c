package credentials

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minPassBytes          = 10
	sealMagic             = "acs1"
)

// ErrSealOpen is returned when a sealed blob fails authentication, which means a wrong
// passphrase or a tampered file.
var ErrSealOpen = errors.New("sealed credentials could not be opened")

// SealConfig sets the argon2id cost used to derive the file key from a passphrase.
type SealConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultSealConfig returns interactive-strength argon2id parameters.
func DefaultSealConfig() SealConfig {
	return SealConfig{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
	}
}

// Sealer encrypts blobs at rest with XChaCha20-Poly1305 under an argon2id-derived key.
//
// Every Seal draws a fresh salt and nonce, so the sealed layout is
// magic | salt | nonce | ciphertext.
type Sealer struct {
	config     SealConfig
	passphrase []byte
}

// NewSealer validates cfg and the passphrase length.
func NewSealer(passphrase string, cfg SealConfig) (*Sealer, error) {
	if err := validateSealConfig(cfg); err != nil {
		return nil, err
	}
	if len(passphrase) < minPassBytes {
		return nil, errors.New("passphrase must be at least 10 bytes")
	}
	return &Sealer{config: cfg, passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, s.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(sealMagic) + len(salt) + len(nonce) + len(plaintext) + aead.Overhead())
	buf.WriteString(sealMagic)
	buf.Write(salt)
	buf.Write(nonce)
	header := buf.Bytes()

	return aead.Seal(header, nonce, plaintext, header), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	saltLen := int(s.config.SaltLength)
	headerLen := len(sealMagic) + saltLen + chacha20poly1305.NonceSizeX
	if len(sealed) < headerLen+chacha20poly1305.Overhead {
		return nil, ErrSealOpen
	}
	if string(sealed[:len(sealMagic)]) != sealMagic {
		return nil, ErrSealOpen
	}

	salt := sealed[len(sealMagic) : len(sealMagic)+saltLen]
	nonce := sealed[len(sealMagic)+saltLen : headerLen]

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed[headerLen:], sealed[:headerLen])
	if err != nil {
		return nil, ErrSealOpen
	}
	return plaintext, nil
}

func (s *Sealer) deriveKey(salt []byte) []byte {
	return argon2.IDKey(
		s.passphrase,
		salt,
		s.config.Time,
		s.config.Memory,
		s.config.Parallelism,
		chacha20poly1305.KeySize,
	)
}

func validateSealConfig(cfg SealConfig) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("argon2 salt length must be >= 16")
	}
	return nil
}
