package app

import "crypto/rand"

// passwordAlphabet holds the characters generated credentials are drawn
// from. Restricted to characters safe in config files and command-line
// interpolation.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._"

const passwordLength = 16

// GeneratePassword returns a random 16-character credential.
func GeneratePassword() string {
	raw := make([]byte, passwordLength)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	password := make([]byte, passwordLength)
	for i, b := range raw {
		password[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(password)
}
