package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigits  = "0123456789"
	passwordSymbols = "!@#$%^&*"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateTemporaryPassword returns a random password of the given length
// with at least one letter, digit and symbol.
func GenerateTemporaryPassword(length int) (string, error) {
	if length < 8 {
		return "", fmt.Errorf("temporary password length must be at least 8, got %d", length)
	}
	alphabet := passwordLetters + passwordDigits + passwordSymbols
	out := make([]byte, length)

	pools := []string{passwordLetters, passwordDigits, passwordSymbols}
	for i, pool := range pools {
		c, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := len(pools); i < length; i++ {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Shuffle so the guaranteed characters are not always first.
	for i := length - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(pool string) (byte, error) {
	n, err := randomInt(len(pool))
	if err != nil {
		return 0, err
	}
	return pool[n], nil
}

func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(n.Int64()), nil
}
