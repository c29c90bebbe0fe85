package mapstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// entLexer splits entity-lump text into braces and quoted strings. Line
// comments starting with "//" are skipped outside of strings.
type entLexer struct {
	r    *bufio.Reader
	line int
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokString
)

func (lx *entLexer) syntax(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, lx.line, fmt.Sprintf(format, args...))
}

func (lx *entLexer) next() (tokenKind, string, error) {
	for {
		c, err := lx.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return tokEOF, "", nil
		}
		if err != nil {
			return tokEOF, "", err
		}
		switch c {
		case '\n':
			lx.line++
		case ' ', '\t', '\r', 0:
		case '{':
			return tokOpen, "", nil
		case '}':
			return tokClose, "", nil
		case '"':
			s, err := lx.r.ReadString('"')
			if err != nil {
				if errors.Is(err, io.EOF) {
					return tokEOF, "", lx.syntax("unterminated string")
				}
				return tokEOF, "", err
			}
			s = s[:len(s)-1]
			lx.line += strings.Count(s, "\n")
			return tokString, s, nil
		case '/':
			if p, _ := lx.r.Peek(1); len(p) == 1 && p[0] == '/' {
				if _, err := lx.r.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
					return tokEOF, "", err
				}
				lx.line++
				continue
			}
			return tokEOF, "", lx.syntax("unexpected %q", c)
		default:
			return tokEOF, "", lx.syntax("unexpected %q", c)
		}
	}
}

// decodeEnt parses entity-lump text. Later duplicates of a key within one
// block overwrite earlier ones while keeping the first position.
func decodeEnt(r io.Reader) ([]entity.Record, error) {
	lx := &entLexer{r: bufio.NewReader(r), line: 1}
	var records []entity.Record
	for {
		tok, _, err := lx.next()
		if err != nil {
			return nil, err
		}
		switch tok {
		case tokEOF:
			return records, nil
		case tokOpen:
		default:
			return nil, lx.syntax("expected '{'")
		}

		rec := entity.NewMemRecord()
		for {
			tok, key, err := lx.next()
			if err != nil {
				return nil, err
			}
			if tok == tokClose {
				break
			}
			if tok != tokString {
				return nil, lx.syntax("expected key or '}' in entity %d", len(records))
			}
			tok, value, err := lx.next()
			if err != nil {
				return nil, err
			}
			if tok != tokString {
				return nil, lx.syntax("expected value for key %q in entity %d", key, len(records))
			}
			rec.Set(key, value)
		}
		records = append(records, rec)
	}
}

func encodeEnt(w io.Writer, records []entity.Record) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		bw.WriteString("{\n")
		for _, k := range rec.Keys() {
			v, _ := rec.Get(k)
			if strings.ContainsAny(k, "\"\n") || strings.ContainsAny(v, "\"\n") {
				return fmt.Errorf("%w: entity %d key %q: quotes and newlines cannot be written", ErrUnencodable, i, k)
			}
			bw.WriteString(`"` + k + `" "` + v + "\"\n")
		}
		bw.WriteString("}\n")
	}
	return bw.Flush()
}
