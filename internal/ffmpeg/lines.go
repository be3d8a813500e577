package ffmpeg

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// DiagnosticLimit is how many trailing characters of ffmpeg's diagnostic
// stream are kept for a failed conversion.
const DiagnosticLimit = 500

// NewLineScanner returns a scanner that yields one token per ffmpeg output
// line, treating a bare carriage return as a line end.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(SplitByNewlineOrCR)
	return scanner
}

func SplitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Tail keeps the last Limit characters of the lines written to it. It is
// safe for concurrent use.
type Tail struct {
	Limit int

	mu  sync.Mutex
	buf []byte
}

func NewTail(limit int) *Tail {
	return &Tail{Limit: limit}
}

func (t *Tail) AddLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')

	// utf8.UTFMax bytes per character is the upper bound of what String can need.
	keep := t.limit() * utf8.UTFMax
	if len(t.buf) > 2*keep {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-keep:]...)
	}
}

// String returns at most Limit characters, trimmed of surrounding whitespace.
func (t *Tail) String() string {
	t.mu.Lock()
	s := string(t.buf)
	t.mu.Unlock()

	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	runes := []rune(s)
	if n := t.limit(); len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return strings.TrimSpace(string(runes))
}

func (t *Tail) limit() int {
	if t.Limit <= 0 {
		return DiagnosticLimit
	}
	return t.Limit
}
