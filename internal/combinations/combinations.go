package combinations

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	ErrOverflow        = errors.New("keyspace overflows uint64")
	ErrEmptyAlphabet   = errors.New("empty alphabet")
	ErrInvalidAlphabet = errors.New("alphabet is not valid UTF-8")
	ErrTooLarge        = errors.New("keyspace too large to enumerate")
	ErrMaxLength       = fmt.Errorf("maxLength exceeds %d", MaxLength)
)

const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MaxLength bounds the word length of any keyspace. Longer words overflow
// uint64 for every alphabet of two or more symbols anyway.
const MaxLength = 64

// TotalCombinations counts the words of length 1..maxLength over the
// symbols (runes) of alphabet.
func TotalCombinations(alphabet string, maxLength int) (uint64, error) {
	if maxLength > MaxLength {
		return 0, ErrMaxLength
	}
	base := uint64(utf8.RuneCountInString(alphabet))
	switch {
	case base == 0 || maxLength <= 0:
		return 0, nil
	case base == 1:
		return uint64(maxLength), nil
	}
	var total uint64 = 0
	for l := 1; l <= maxLength; l++ {
		power, err := pow(base, l)
		if err != nil {
			return 0, err
		}
		if total > ^uint64(0)-power {
			return 0, ErrOverflow
		}
		total += power
	}
	return total, nil
}

func pow(base uint64, exp int) (uint64, error) {
	var power uint64 = 1
	for i := 0; i < exp; i++ {
		if power > (^uint64(0))/base {
			return 0, ErrOverflow
		}
		power *= base
	}
	return power, nil
}

func wordFromIndex(index uint64, length int, symbols []rune) string {
	base := uint64(len(symbols))
	word := make([]rune, length)
	for i := length - 1; i >= 0; i-- {
		word[i] = symbols[index%base]
		index /= base
	}
	return string(word)
}

// Keyspace enumerates every word over an alphabet with length 1..maxLength,
// shorter words first. It satisfies attack.Candidates.
type Keyspace struct {
	symbols   []rune
	maxLength int
	total     int
	// offsets[l-1] is the index of the first word of length l.
	offsets []uint64
}

func NewKeyspace(alphabet string, maxLength int) (*Keyspace, error) {
	if alphabet == "" {
		return nil, ErrEmptyAlphabet
	}
	if !utf8.ValidString(alphabet) {
		return nil, ErrInvalidAlphabet
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("maxLength must be positive, got %d", maxLength)
	}
	total, err := TotalCombinations(alphabet, maxLength)
	if err != nil {
		return nil, err
	}
	if total > math.MaxInt {
		return nil, fmt.Errorf("%w: %d words", ErrTooLarge, total)
	}

	k := &Keyspace{symbols: []rune(alphabet), maxLength: maxLength, total: int(total)}
	var offset uint64
	base := uint64(len(k.symbols))
	for l := 1; l <= maxLength; l++ {
		k.offsets = append(k.offsets, offset)
		count, _ := pow(base, l)
		offset += count
	}
	return k, nil
}

func (k *Keyspace) Len() int { return k.total }

// Symbols returns the alphabet size in runes.
func (k *Keyspace) Symbols() int { return len(k.symbols) }

func (k *Keyspace) At(i int) string {
	idx := uint64(i)
	l := len(k.offsets)
	for l > 1 && idx < k.offsets[l-1] {
		l--
	}
	return wordFromIndex(idx-k.offsets[l-1], l, k.symbols)
}
