package auth

import "golang.org/x/crypto/bcrypt"

func HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPasscode(hashed, passcode string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(passcode))
}
