package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"
)

func newColor(c string) []byte {
	return []byte("\x1b[" + c + "m")
}

var (
	resetColor = newColor("0")    // Reset
	nullColor  = newColor("90")   // Bright black
	boolColor  = newColor("33")   // Yellow
	numColor   = newColor("36")   // Cyan
	strColor   = newColor("32")   // Green
	keyColor   = newColor("34;1") // Bold blue
)

// encoder writes query results as JSON, with optional indentation and ANSI
// colors.  Numbers are json.Number values, written verbatim so arbitrary
// precision survives printing.
type encoder struct {
	out      io.Writer
	w        *bytes.Buffer
	colorize bool
	tab      bool
	indent   int
	depth    int
}

func newEncoder(colorize, tab bool, indent int) *encoder {
	return &encoder{w: new(bytes.Buffer), colorize: colorize, tab: tab, indent: indent}
}

func (e *encoder) marshal(v any, w io.Writer) error {
	e.out = w
	e.encode(v)
	_, err := w.Write(e.w.Bytes())
	e.w.Reset()
	return err
}

func (e *encoder) setColor(color []byte) {
	if e.colorize {
		e.w.Write(color)
	}
}

func (e *encoder) unsetColor() {
	if e.colorize {
		e.w.Write(resetColor)
	}
}

func (e *encoder) encode(v any) {
	switch v := v.(type) {
	case nil:
		e.setColor(nullColor)
		e.w.WriteString("null")
		e.unsetColor()
	case bool:
		e.setColor(boolColor)
		if v {
			e.w.WriteString("true")
		} else {
			e.w.WriteString("false")
		}
		e.unsetColor()
	case json.Number:
		e.setColor(numColor)
		e.w.WriteString(v.String())
		e.unsetColor()
	case string:
		e.setColor(strColor)
		e.encodeString(v)
		e.unsetColor()
	case []any:
		e.encodeArray(v)
	case map[string]any:
		e.encodeMap(v)
	default:
		panic(fmt.Sprintf("invalid value: %v", v))
	}
}

// ref: encodeState#string in encoding/json
func (e *encoder) encodeString(s string) {
	e.w.WriteByte('"')
	start := 0
	for i := 0; i < len(s); {
		if b := s[i]; b < utf8.RuneSelf {
			if ']' <= b && b <= '~' || '#' <= b && b <= '[' || b == ' ' || b == '!' {
				i++
				continue
			}
			if start < i {
				e.w.WriteString(s[start:i])
			}
			e.w.WriteByte('\\')
			switch b {
			case '\\', '"':
				e.w.WriteByte(b)
			case '\n':
				e.w.WriteByte('n')
			case '\r':
				e.w.WriteByte('r')
			case '\t':
				e.w.WriteByte('t')
			default:
				const hex = "0123456789abcdef"
				e.w.Write([]byte{'u', '0', '0', hex[b>>4], hex[b&0xF]})
			}
			i++
			start = i
			continue
		}
		c, size := utf8.DecodeRuneInString(s[i:])
		if c == utf8.RuneError && size == 1 {
			if start < i {
				e.w.WriteString(s[start:i])
			}
			e.w.WriteString(`\ufffd`)
			i += size
			start = i
			continue
		}
		i += size
	}
	if start < len(s) {
		e.w.WriteString(s[start:])
	}
	e.w.WriteByte('"')
}

func (e *encoder) encodeArray(vs []any) {
	e.w.WriteByte('[')
	e.depth++
	for i, v := range vs {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.writeIndent()
		e.encode(v)
	}
	e.depth--
	if len(vs) > 0 {
		e.writeIndent()
	}
	e.w.WriteByte(']')
}

func (e *encoder) encodeMap(vs map[string]any) {
	e.w.WriteByte('{')
	e.depth++
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.writeIndent()
		e.setColor(keyColor)
		e.encodeString(k)
		e.unsetColor()
		e.w.WriteByte(':')
		if e.indent != 0 || e.tab {
			e.w.WriteByte(' ')
		}
		e.encode(vs[k])
	}
	e.depth--
	if len(keys) > 0 {
		e.writeIndent()
	}
	e.w.WriteByte('}')
}

func (e *encoder) writeIndent() {
	if !e.tab && e.indent == 0 {
		return
	}
	e.w.WriteByte('\n')
	if e.tab {
		for i := 0; i < e.depth; i++ {
			e.w.WriteByte('\t')
		}
		return
	}
	for i := e.depth * e.indent; i > 0; i-- {
		e.w.WriteByte(' ')
	}
}
