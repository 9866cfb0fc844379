package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	sha256 "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Provider computes the lowercase hex digest of a candidate.
type Provider interface {
	Digest(candidate string, alg Algorithm) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(candidate string, alg Algorithm) (string, error)

func (f ProviderFunc) Digest(candidate string, alg Algorithm) (string, error) {
	return f(candidate, alg)
}

// Hasher is the in-process Provider backed by native hash implementations.
type Hasher struct{}

func NewHasher() Hasher {
	return Hasher{}
}

func (Hasher) Digest(candidate string, alg Algorithm) (string, error) {
	data := []byte(candidate)
	switch alg {
	case MD5:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA1:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA512:
		sum := sha512.Sum512(data)
		return hex.EncodeToString(sum[:]), nil
	case SHA3:
		sum := sha3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case BLAKE2B:
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	case XXH3:
		var sum [8]byte
		binary.BigEndian.PutUint64(sum[:], xxh3.HashString(candidate))
		return hex.EncodeToString(sum[:]), nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(alg))
}

// Verify reports whether candidate digests to target under alg. The
// comparison ignores case.
func Verify(p Provider, candidate, target string, alg Algorithm) (bool, error) {
	sum, err := p.Digest(candidate, alg)
	if err != nil {
		return false, err
	}
	return Equal(sum, target), nil
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
