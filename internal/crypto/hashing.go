package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassphrase salts and hashes a channel passphrase for storage.
func HashPassphrase(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	return string(hashed), err
}

// PassphraseMatches compares a supplied passphrase against a stored hash. An
// empty supplied passphrase never matches.
func PassphraseMatches(hashed, plaintext string) bool {
	if plaintext == "" || hashed == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
	return err == nil
}

// IsHashed reports whether a stored secret is already a bcrypt hash. Stores
// written before hashing was introduced hold plaintext secrets.
func IsHashed(secret string) bool {
	_, err := bcrypt.Cost([]byte(secret))
	return err == nil
}
