package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the spec's minimum cost (≥10); kept one above the floor to
// leave headroom if the hardware budget changes.
const BcryptCost = 11

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidUsername enforces spec.md §4.9's length floor.
func ValidUsername(u string) bool {
	return len(u) >= 9
}

// ValidPassword enforces spec.md §4.9's length floor.
func ValidPassword(p string) bool {
	return len(p) >= 9
}
