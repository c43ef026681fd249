package keyvault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters for the at-rest key encryption.
	pbkdf2Iterations = 100000
	derivedKeyLen    = 32
	saltLen          = 32
	ivLen            = 16
)

// ErrDecode indicates the encrypted key could not be decoded: wrong password,
// corrupted ciphertext, or a value written by a different scheme. Callers must
// treat all three identically and never trust the output.
var ErrDecode = errors.New("failed to decode encrypted key")

var privateKeyHexRE = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// IsValidKeyHex reports whether s has the shape of a raw 32-byte private key
// encoded as hex.
func IsValidKeyHex(s string) bool {
	return privateKeyHexRE.MatchString(s)
}

// EncodedSecret is the at-rest form of the signing key: AES-256-CBC ciphertext
// together with the random salt and IV it was produced under.
type EncodedSecret struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// String serializes the secret as salt_hex:iv_hex:ciphertext_hex.
func (s EncodedSecret) String() string {
	return hex.EncodeToString(s.Salt) + ":" + hex.EncodeToString(s.IV) + ":" + hex.EncodeToString(s.Ciphertext)
}

// ParseEncodedSecret parses the salt_hex:iv_hex:ciphertext_hex text form.
func ParseEncodedSecret(raw string) (EncodedSecret, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return EncodedSecret{}, errors.Wrap(ErrDecode, "expected salt:iv:ciphertext")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != saltLen {
		return EncodedSecret{}, errors.Wrap(ErrDecode, "invalid salt segment")
	}

	iv, err := hex.DecodeString(parts[1])
	if err != nil || len(iv) != ivLen {
		return EncodedSecret{}, errors.Wrap(ErrDecode, "invalid iv segment")
	}

	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return EncodedSecret{}, errors.Wrap(ErrDecode, "invalid ciphertext segment")
	}

	return EncodedSecret{Salt: salt, IV: iv, Ciphertext: ciphertext}, nil
}

// Encrypt encrypts a 64-hex-character private key under password. A fresh
// random salt and IV are drawn on every call, so repeated calls on identical
// inputs never produce the same ciphertext.
func Encrypt(plaintextKey string, password string) (EncodedSecret, error) {
	if !IsValidKeyHex(plaintextKey) {
		return EncodedSecret{}, errors.New("plaintext is not a 64-hex-character private key")
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return EncodedSecret{}, errors.Wrap(err, "failed to generate salt")
	}

	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncodedSecret{}, errors.Wrap(err, "failed to generate iv")
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return EncodedSecret{}, errors.Wrap(err, "failed to create aes cipher")
	}

	padded := pkcs7Pad([]byte(plaintextKey), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return EncodedSecret{Salt: salt, IV: iv, Ciphertext: ciphertext}, nil
}

// Decrypt re-derives the key from password and the stored salt and decrypts.
// CBC has no integrity check, so a wrong password yields garbage; the 64-hex
// format validation is what rejects it. Returns ErrDecode in every failure mode.
func Decrypt(secret EncodedSecret, password string) (string, error) {
	if len(secret.Salt) != saltLen || len(secret.IV) != ivLen {
		return "", errors.Wrap(ErrDecode, "malformed secret")
	}
	if len(secret.Ciphertext) == 0 || len(secret.Ciphertext)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrDecode, "malformed ciphertext")
	}

	key := pbkdf2.Key([]byte(password), secret.Salt, pbkdf2Iterations, derivedKeyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "failed to create aes cipher")
	}

	padded := make([]byte, len(secret.Ciphertext))
	cipher.NewCBCDecrypter(block, secret.IV).CryptBlocks(padded, secret.Ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", ErrDecode
	}

	if !IsValidKeyHex(string(plaintext)) {
		return "", ErrDecode
	}

	return string(plaintext), nil
}

// DecryptLegacy reproduces the broken first-generation scheme: a byte-wise XOR
// of the ciphertext against the password repeated as a keystream. It exists
// only so previously stored values can be migrated; callers must opt in
// explicitly and must try Decrypt first. Never use for new data.
func DecryptLegacy(ciphertextHex string, password string) (string, error) {
	if password == "" {
		return "", errors.Wrap(ErrDecode, "empty password")
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", errors.Wrap(ErrDecode, "ciphertext is not hex")
	}

	keystream := []byte(password)
	plaintext := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		plaintext[i] = b ^ keystream[i%len(keystream)]
	}

	if !IsValidKeyHex(string(plaintext)) {
		return "", ErrDecode
	}

	return string(plaintext), nil
}

// EncryptLegacy is the inverse of DecryptLegacy. It only exists so the
// migration path stays testable against real legacy values; nothing in the
// service writes this format.
func EncryptLegacy(plaintextKey string, password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}

	keystream := []byte(password)
	ciphertext := make([]byte, len(plaintextKey))
	for i := 0; i < len(plaintextKey); i++ {
		ciphertext[i] = plaintextKey[i] ^ keystream[i%len(keystream)]
	}
	return hex.EncodeToString(ciphertext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding length")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding byte")
		}
	}
	return data[:len(data)-padLen], nil
}
