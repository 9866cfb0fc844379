package digest

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm identifies a supported digest function.
type Algorithm int

const (
	MD5 Algorithm = iota + 1
	SHA1
	SHA256
	SHA512
	SHA3
	BLAKE2B
	BLAKE3
	XXH3
)

var (
	ErrUnknownAlgorithm = errors.New("unrecognized algorithm")
	ErrInvalidTarget    = errors.New("invalid target digest")
)

var algorithmNames = map[Algorithm]string{
	MD5:     "md5",
	SHA1:    "sha1",
	SHA256:  "sha256",
	SHA512:  "sha512",
	SHA3:    "sha3",
	BLAKE2B: "blake2b",
	BLAKE3:  "blake3",
	XXH3:    "xxh3",
}

var aliases = map[string]Algorithm{
	"sha-1":       SHA1,
	"sha-256":     SHA256,
	"sha-512":     SHA512,
	"sha3-256":    SHA3,
	"sha-3":       SHA3,
	"blake2b-256": BLAKE2B,
	"blake3-256":  BLAKE3,
	"xxh3-64":     XXH3,
}

// Algorithms returns every supported algorithm in declaration order.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256, SHA512, SHA3, BLAKE2B, BLAKE3, XXH3}
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	_, ok := algorithmNames[a]
	return ok
}

// HexLength is the number of hex characters in a digest produced by a.
func (a Algorithm) HexLength() int {
	info, ok := infos[a]
	if !ok {
		return 0
	}
	return info.OutputBits / 4
}

// ParseAlgorithm maps an external identifier such as "SHA-256" or "md5"
// onto an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for alg, n := range algorithmNames {
		if n == name {
			return alg, nil
		}
	}
	if alg, ok := aliases[name]; ok {
		return alg, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = alg
	return nil
}

// NormalizeTarget lowercases and trims target and checks that it is a hex
// string of the length alg produces.
func NormalizeTarget(target string, alg Algorithm) (string, error) {
	if !alg.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(alg))
	}
	t := strings.ToLower(strings.TrimSpace(target))
	if len(t) != alg.HexLength() {
		return "", fmt.Errorf("%w: %s digest must be %d hex characters, got %d",
			ErrInvalidTarget, alg, alg.HexLength(), len(t))
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: non-hex character %q at offset %d", ErrInvalidTarget, c, i)
		}
	}
	return t, nil
}
