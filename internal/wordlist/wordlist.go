package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aegyost/dictattack/internal/attack"
)

// MaxSize caps how many bytes a dictionary may occupy.
const MaxSize = 10 << 20

var (
	ErrTooLarge = errors.New("dictionary too large")
	ErrEmpty    = errors.New("dictionary is empty")
	ErrBadName  = errors.New("invalid dictionary name")
)

// Read parses one candidate per line. Lines are trimmed; blank lines and
// lines starting with '#' are skipped. Order is preserved, duplicates kept.
func Read(r io.Reader) (attack.Wordlist, error) {
	lr := &io.LimitedReader{R: r, N: MaxSize + 1}
	sc := bufio.NewScanner(lr)
	sc.Buffer(make([]byte, 0, 64*1024), MaxSize)

	var words attack.Wordlist
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if lr.N <= 0 {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, MaxSize)
	}
	if len(words) == 0 {
		return nil, ErrEmpty
	}
	return words, nil
}

func Load(path string) (attack.Wordlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	words, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return words, nil
}

// Dir serves named dictionaries from a directory. Names are plain file
// names; ".txt" is appended when missing.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Load(name string) (attack.Wordlist, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if filepath.Ext(name) == "" {
		name += ".txt"
	}
	return Load(filepath.Join(d.root, name))
}

func (d *Dir) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.root, "*.txt"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".txt"))
	}
	return names, nil
}
