package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/jsonpath-go/jsonpath"
)

type queryParseError struct {
	contents string
	err      error
}

func (err *queryParseError) Error() string {
	var offset int
	var e *jsonpath.ParseError
	if errors.As(err.err, &e) {
		offset = e.Offset + 1
	}
	linestr, line, column := getLineByOffset(err.contents, offset)
	if containsNewline(err.contents) {
		return fmt.Sprintf("invalid path: <arg>:%d\n%s  %s",
			line, formatLineInfo(linestr, line, column), err.err)
	}
	return fmt.Sprintf("invalid path: %s\n    %s\n    %*c  %s",
		err.contents, linestr, column+1, '^', err.err)
}

type jsonParseError struct {
	contents string
	err      error
}

func (err *jsonParseError) toError() error {
	var offset int
	if err.err == io.ErrUnexpectedEOF {
		offset = len(err.contents) + 1
	} else if e, ok := err.err.(*json.SyntaxError); ok {
		offset = int(e.Offset)
	}
	linestr, line, column := getLineByOffset(err.contents, offset)
	if line > 1 {
		return fmt.Errorf("invalid json: <stdin>:%d\n%s  %s",
			line, formatLineInfo(linestr, line, column), err.err)
	}
	return fmt.Errorf("invalid json: %s\n    %*c  %s",
		linestr, column+1, '^', err.err)
}

func containsNewline(s string) bool {
	return strings.ContainsAny(s, "\n\r")
}

func getLineByOffset(str string, offset int) (linestr string, line, column int) {
	for len(str) > 0 {
		line++
		i := strings.IndexAny(str, "\n\r")
		if i < 0 {
			linestr = str
			break
		}
		if offset <= i+1 {
			linestr = str[:i]
			break
		}
		offset -= i + 1
		str = str[i+1:]
		linestr = str
	}
	offset = max(0, min(offset-1, len(linestr)))
	if offset > 48 {
		skip := len(trimLastInvalidRune(linestr[:offset-48]))
		linestr = linestr[skip:]
		offset -= skip
	}
	linestr = trimLastInvalidRune(linestr[:min(64, len(linestr))])
	if offset > len(linestr) {
		offset = len(linestr)
	}
	column = runewidth.StringWidth(linestr[:offset])
	return
}

func trimLastInvalidRune(s string) string {
	for i := len(s) - 1; i >= 0 && i > len(s)-utf8.UTFMax; i-- {
		if b := s[i]; b < utf8.RuneSelf {
			return s[:i+1]
		} else if utf8.RuneStart(b) {
			if r, _ := utf8.DecodeRuneInString(s[i:]); r == utf8.RuneError {
				return s[:i]
			}
			break
		}
	}
	return s
}

func formatLineInfo(linestr string, line, column int) string {
	l := strconv.Itoa(line)
	return fmt.Sprintf("    %s | %s\n    %*c", l, linestr, column+len(l)+4, '^')
}
