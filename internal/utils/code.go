package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateVerificationCode returns a uniformly random six digit code in
// [100000, 999999].
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// CodesEqual compares a submitted code with the stored one in constant
// time.  An empty stored code never matches.
func CodesEqual(submitted, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
