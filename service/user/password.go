package user

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// passwords stores passwords verbatim unless hashing is enabled. Hashing is
// off by default so existing plaintext records keep working.
type passwords struct {
	hash bool
	cost int
}

func (p passwords) seal(plain string) (string, error) {
	if !p.hash {
		return plain, nil
	}
	cost := p.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// matches compares a login attempt with the stored password. With hashing on,
// stored bcrypt hashes are only accepted through bcrypt. With hashing off the
// stored value is first compared verbatim, so a plaintext password that looks
// like a hash still works, and hashes left from a hashed period keep working.
func (p passwords) matches(stored, given string) bool {
	if !p.hash && subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1 {
		return true
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return p.hash && subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcrypt(s string) bool {
	if _, err := bcrypt.Cost([]byte(s)); err != nil {
		return false
	}
	return true
}
