// Package cachekey derives cache keys from a function name and its
// parameters.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/academy-ai/aicache/pkg/params"
)

// HashLen is the length of the hex digest suffix of every key.
const HashLen = sha256.Size * 2

// Key returns functionName + ":" + hex(sha256(canonical(p))).
//
// The digest suffix has a fixed length, so a function name containing ':'
// cannot make two different (name, params) pairs collide.
func Key(functionName string, p params.Value) (string, error) {
	if err := ValidateFunctionName(functionName); err != nil {
		return "", err
	}
	canonical, err := p.Canonical()
	if err != nil {
		return "", fmt.Errorf("canonicalize %s params: %w", functionName, err)
	}
	sum := sha256.Sum256(canonical)
	return functionName + ":" + hex.EncodeToString(sum[:]), nil
}

// FromAny converts raw decoded parameters and derives the key.
func FromAny(functionName string, raw any) (string, error) {
	p, err := params.FromAny(raw)
	if err != nil {
		return "", err
	}
	return Key(functionName, p)
}

// FunctionName returns the function-name prefix of a key produced by Key.
func FunctionName(key string) (string, bool) {
	if len(key) <= HashLen+1 || key[len(key)-HashLen-1] != ':' {
		return "", false
	}
	return key[:len(key)-HashLen-1], true
}

// ValidateFunctionName rejects empty names and names containing whitespace
// or control characters.
func ValidateFunctionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty function name", params.ErrInvalidParameters)
	}
	if strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%w: function name %q contains whitespace", params.ErrInvalidParameters, name)
	}
	return nil
}
