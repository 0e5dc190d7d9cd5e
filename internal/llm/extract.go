package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

var (
	trailingCommaObject = regexp.MustCompile(`,\s*}`)
	trailingCommaArray  = regexp.MustCompile(`,\s*]`)
	missingCommaString  = regexp.MustCompile(`"\s*\n\s*"`)
	missingCommaObject  = regexp.MustCompile(`}\s*\n\s*{`)
	missingCommaArray   = regexp.MustCompile(`]\s*\n\s*\[`)
	bareKey             = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	singleQuoted        = regexp.MustCompile(`'([^']*)'`)
	controlChars        = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
)

// ExtractJSON pulls the first JSON document out of free-form model output.
// Code fences are stripped, then the first balanced object is returned, or
// failing that the first balanced array. When neither is balanced the
// cleaned text is returned unchanged.
func ExtractJSON(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	if s, ok := balanced(text, '{', '}'); ok {
		return s
	}
	if s, ok := balanced(text, '[', ']'); ok {
		return s
	}
	return text
}

// balanced returns the substring from the first open rune to its matching
// close rune. Delimiters inside double-quoted strings are not counted.
func balanced(text string, open, closing byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// RepairJSON applies textual fixes for the mistakes models commonly make:
// trailing commas, missing commas between values on separate lines, bare
// keys, single-quoted strings and stray control characters.
func RepairJSON(s string) string {
	if s == "" {
		return s
	}

	original := s
	s = trailingCommaObject.ReplaceAllString(s, "}")
	s = trailingCommaArray.ReplaceAllString(s, "]")
	s = missingCommaString.ReplaceAllString(s, "\",\n\"")
	s = missingCommaObject.ReplaceAllString(s, "},\n{")
	s = missingCommaArray.ReplaceAllString(s, "],\n[")
	s = bareKey.ReplaceAllString(s, `$1"$2":`)
	s = singleQuoted.ReplaceAllString(s, `"$1"`)
	s = controlChars.ReplaceAllString(s, "")

	if s != original {
		slog.Debug("JSON repaired", "original_len", len(original), "repaired_len", len(s))
	}
	return s
}

// ParseInto extracts JSON from text and decodes it into v, retrying once
// after repair.
func ParseInto(text string, v any) error {
	if strings.TrimSpace(text) == "" {
		return common.ErrEmptyModelResponse
	}

	doc := ExtractJSON(text)
	if doc == "" {
		return fmt.Errorf("%w: no JSON found", common.ErrMalformedAnalysis)
	}

	firstErr := json.Unmarshal([]byte(doc), v)
	if firstErr == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(firstErr, &typeErr) {
		return fmt.Errorf("%w: %v", common.ErrMalformedAnalysis, firstErr)
	}

	repaired := RepairJSON(doc)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedAnalysis, firstErr)
	}
	return nil
}

// SafeParse extracts and decodes a JSON document from text, returning def
// when nothing usable can be recovered. It never panics.
func SafeParse(text string, def any) any {
	var out any
	if err := ParseInto(text, &out); err != nil {
		slog.Debug("JSON parse failed, using default", "error", err)
		return def
	}
	return out
}
