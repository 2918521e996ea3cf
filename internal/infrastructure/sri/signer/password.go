package signer

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/crisanro/kipu-core/internal/domain"
)

// Cifrado en reposo de la contraseña del .p12: AES-256-CBC con clave derivada
// del secreto maestro (SHA-256) y salida "iv_hex:cipher_hex".

// CifrarPassword cifra la contraseña en claro con la clave del servidor.
func CifrarPassword(masterSecret, plaintext string) (string, error) {
	if masterSecret == "" {
		return "", fmt.Errorf("signer: ENCRYPTION_KEY vacío")
	}
	key := sha256.Sum256([]byte(masterSecret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("signer: crear cifrador: %w", err)
	}

	padded := padPKCS7([]byte(plaintext), aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("signer: generar IV: %w", err)
	}

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// DescifrarPassword recupera la contraseña en claro. Cualquier fallo de formato
// o de descifrado retorna error: no se tolera material ilegible.
func DescifrarPassword(masterSecret, almacenada string) (string, error) {
	if masterSecret == "" {
		return "", fmt.Errorf("signer: ENCRYPTION_KEY vacío")
	}
	partes := strings.SplitN(almacenada, ":", 2)
	if len(partes) != 2 {
		return "", fmt.Errorf("signer: formato de contraseña cifrada inválido: %w", domain.ErrFirmaInvalida)
	}
	iv, err := hex.DecodeString(partes[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("signer: IV inválido: %w", domain.ErrFirmaInvalida)
	}
	data, err := hex.DecodeString(partes[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("signer: ciphertext inválido: %w", domain.ErrFirmaInvalida)
	}

	key := sha256.Sum256([]byte(masterSecret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("signer: crear cifrador: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plano, err := unpadPKCS7(out, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("signer: padding inválido (¿clave rotada?): %w", domain.ErrFirmaInvalida)
	}
	return string(plano), nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("largo inválido")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("byte de padding fuera de rango")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("padding inconsistente")
		}
	}
	return data[:len(data)-n], nil
}
