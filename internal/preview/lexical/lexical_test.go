package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(src string) []string {
	names := map[Kind]string{Code: "code", String: "string", Template: "template", Comment: "comment", Regex: "regex"}
	var out []string
	for _, sp := range Scan(src) {
		out = append(out, names[sp.Kind]+":"+src[sp.Start:sp.End])
	}
	return out
}

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain code", "a + b;", []string{"code:a + b;"}},
		{"strings", `x = "a\"b" + 'c';`, []string{"code:x = ", `string:"a\"b"`, "code: + ", "string:'c'", "code:;"}},
		{"line comment keeps newline in code", "a; // note\nb;", []string{"code:a; ", "comment:// note", "code:\nb;"}},
		{"block comment", "a /* x\n\ny */ b", []string{"code:a ", "comment:/* x\n\ny */", "code: b"}},
		{"template", "s = `a\n\nb`;", []string{"code:s = ", "template:`a\n\nb`", "code:;"}},
		{"template substitution", "`a${ {k: 1}.k }b`", []string{"template:`a${", "code: {k: 1}.k ", "template:}b`"}},
		{"nested template", "`a${`b${c}`}d`", []string{"template:`a${`b${", "code:c", "template:}`}d`"}},
		{"regex after assignment", "r = /a'b/g;", []string{"code:r = ", "regex:/a'b/g", "code:;"}},
		{"regex with slash in class", "r = /[/]/;", []string{"code:r = ", "regex:/[/]/", "code:;"}},
		{"regex after return", "return /x/.test(s)", []string{"code:return ", "regex:/x/", "code:.test(s)"}},
		{"division", "a = b / c / d;", []string{"code:a = b / c / d;"}},
		{"jsx closing tag", "<p>{x}</p>", []string{"code:<p>{x}</p>"}},
		{"jsx self-closing after expression", "<img src={x} />{`a`}", []string{"code:<img src={x} />{", "template:`a`", "code:}"}},
		{"unterminated string stops at newline", "'oops\nb;", []string{"string:'oops", "code:\nb;"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kinds(tt.in))
		})
	}
}

func TestScanCoversSource(t *testing.T) {
	src := "const s = `x${'}'}y`; // c\nconst r = /a/; /* b */ f(\"q\")"
	spans := Scan(src)
	require.NotEmpty(t, spans)

	pos := 0
	for _, sp := range spans {
		assert.Equal(t, pos, sp.Start)
		pos = sp.End
	}
	assert.Equal(t, len(src), pos)
}

func TestKindAt(t *testing.T) {
	src := "a = `\nimport x from 'y'\n`;"
	spans := Scan(src)

	assert.Equal(t, Code, KindAt(spans, 0))
	assert.Equal(t, Template, KindAt(spans, 6))
	assert.Equal(t, Code, KindAt(spans, len(src)-1))
	assert.Equal(t, Code, KindAt(spans, len(src)))
}

func TestMapCode(t *testing.T) {
	got := MapCode("a `a` 'a' // a\na", func(code string) string {
		return "<" + code + ">"
	})
	assert.Equal(t, "<a >`a`< >'a'< >// a<\na>", got)
}
