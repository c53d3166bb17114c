// Package crypto implements the symmetric encryption used for opaque
// identifiers such as API tokens.
//
// The cipher is AES-128-CBC with PKCS#7 padding. The key and IV are the MD5
// digests of the configured secret strings, and the ciphertext is base64
// encoded twice so that tokens issued by older services remain readable.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrKeyRequired   = errors.New("encrypt key is not provided")
	ErrIVRequired    = errors.New("encrypt iv is not provided")
	ErrEncryptFailed = errors.New("encrypt failed")
	ErrDecryptFailed = errors.New("decrypt failed")
)

// Encrypt encrypts plaintext with key and iv. An empty key or iv is a
// precondition failure and is reported before any work is done.
func Encrypt(plaintext, key, iv string) (string, error) {
	block, ivBytes, err := newCipher(key, iv)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, ivBytes).CryptBlocks(out, padded)

	inner := base64.StdEncoding.EncodeToString(out)
	return base64.StdEncoding.EncodeToString([]byte(inner)), nil
}

// Decrypt reverses Encrypt. Any malformed input yields an empty string and
// an error wrapping ErrDecryptFailed; an empty result is never valid plaintext.
func Decrypt(ciphertext, key, iv string) (string, error) {
	block, ivBytes, err := newCipher(key, iv)
	if err != nil {
		return "", err
	}

	inner, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: outer encoding: %v", ErrDecryptFailed, err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(inner))
	if err != nil {
		return "", fmt.Errorf("%w: inner encoding: %v", ErrDecryptFailed, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecryptFailed)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, ivBytes).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid utf-8", ErrDecryptFailed)
	}
	return string(plain), nil
}

func newCipher(key, iv string) (cipher.Block, []byte, error) {
	if key == "" {
		return nil, nil, ErrKeyRequired
	}
	if iv == "" {
		return nil, nil, ErrIVRequired
	}
	keyHash := md5.Sum([]byte(key))
	ivHash := md5.Sum([]byte(iv))

	block, err := aes.NewCipher(keyHash[:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryptFailed, err)
	}
	return block, ivHash[:], nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
