// Package lexical splits JavaScript/TypeScript source into code and literal
// regions so textual passes can leave strings, templates and comments alone.
//
// The scan is best-effort. String and regex literals end at an unescaped
// newline, so a stray quote in JSX text only hides the rest of its line.
package lexical

import (
	"sort"
	"strings"
)

// Kind classifies a region of source.
type Kind int

const (
	Code Kind = iota
	String
	Template
	Comment
	Regex
)

// Span is a half-open byte range [Start, End) of one kind.
type Span struct {
	Kind  Kind
	Start int
	End   int
}

// keywordsBeforeRegex are words after which a slash starts a regex literal.
var keywordsBeforeRegex = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

type scanner struct {
	src   string
	spans []Span

	// templates holds the brace depth of every open ${ } substitution.
	templates []int
	lastByte  byte
	lastWord  string
}

// Scan returns the regions of src in order. Adjacent regions of the same
// kind are merged and together they cover src exactly.
func Scan(src string) []Span {
	s := &scanner{src: src}
	s.run()
	return s.spans
}

func (s *scanner) emit(kind Kind, start, end int) {
	if end <= start {
		return
	}
	if n := len(s.spans); n > 0 && s.spans[n-1].Kind == kind && s.spans[n-1].End == start {
		s.spans[n-1].End = end
		return
	}
	s.spans = append(s.spans, Span{Kind: kind, Start: start, End: end})
}

func (s *scanner) run() {
	src := s.src
	codeStart := 0
	i := 0

	flush := func(end int) {
		s.emit(Code, codeStart, end)
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			flush(i)
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			s.emit(Comment, i, i+end)
			i += end
			codeStart = i

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			flush(i)
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = len(src)
			} else {
				end = i + 2 + end + 2
			}
			s.emit(Comment, i, end)
			i = end
			codeStart = i

		case c == '/' && s.regexAllowed() && !strings.HasPrefix(src[i+1:], ">"):
			flush(i)
			end := s.skipRegex(i)
			s.emit(Regex, i, end)
			s.lastByte, s.lastWord = ')', ""
			i = end
			codeStart = i

		case c == '\'' || c == '"':
			flush(i)
			end := s.skipString(i, c)
			s.emit(String, i, end)
			s.lastByte, s.lastWord = c, ""
			i = end
			codeStart = i

		case c == '`':
			flush(i)
			i = s.template(i, i+1)
			codeStart = i

		case c == '}' && len(s.templates) > 0 && s.templates[len(s.templates)-1] == 0:
			flush(i)
			s.templates = s.templates[:len(s.templates)-1]
			i = s.template(i, i+1)
			codeStart = i

		default:
			if len(s.templates) > 0 {
				switch c {
				case '{':
					s.templates[len(s.templates)-1]++
				case '}':
					s.templates[len(s.templates)-1]--
				}
			}
			s.track(i)
			i++
		}
	}
	flush(len(src))
}

// template scans template text from body until the closing backtick or a
// ${ substitution. start is where the template region begins.
func (s *scanner) template(start, body int) int {
	src := s.src
	for i := body; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '`':
			s.emit(Template, start, i+1)
			s.lastByte, s.lastWord = '`', ""
			return i + 1
		case '$':
			if i+1 < len(src) && src[i+1] == '{' {
				s.emit(Template, start, i+2)
				s.templates = append(s.templates, 0)
				s.lastByte, s.lastWord = '{', ""
				return i + 2
			}
		}
	}
	s.emit(Template, start, len(src))
	return len(src)
}

func (s *scanner) skipString(start int, quote byte) int {
	src := s.src
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			return i
		}
	}
	return len(src)
}

func (s *scanner) skipRegex(start int) int {
	src := s.src
	inClass := false
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				i++
				for i < len(src) && isIdent(src[i]) {
					i++
				}
				return i
			}
		case '\n':
			return i
		}
	}
	return len(src)
}

// regexAllowed reports whether a slash at the current position starts a
// regex rather than a division. < and > are left out so JSX closing tags
// read as division; the caller also skips "/>".
func (s *scanner) regexAllowed() bool {
	if s.lastWord != "" {
		return keywordsBeforeRegex[s.lastWord]
	}
	if s.lastByte == 0 {
		return true
	}
	return strings.IndexByte("(,=:[!&|?{};+-*%~^", s.lastByte) >= 0
}

// track records the last significant byte and word of code.
func (s *scanner) track(i int) {
	c := s.src[i]
	switch {
	case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		return
	case isIdent(c):
		if i > 0 && isIdent(s.src[i-1]) && s.lastWord != "" {
			s.lastWord += string(c)
		} else {
			s.lastWord = string(c)
		}
		s.lastByte = c
	default:
		s.lastByte, s.lastWord = c, ""
	}
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// KindAt returns the kind of the region containing pos.
func KindAt(spans []Span, pos int) Kind {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].End > pos })
	if i < len(spans) && spans[i].Start <= pos {
		return spans[i].Kind
	}
	return Code
}

// MapCode applies fn to every code region of src and leaves the rest as is.
func MapCode(src string, fn func(code string) string) string {
	var b strings.Builder
	b.Grow(len(src))
	for _, sp := range Scan(src) {
		if sp.Kind == Code {
			b.WriteString(fn(src[sp.Start:sp.End]))
		} else {
			b.WriteString(src[sp.Start:sp.End])
		}
	}
	return b.String()
}
