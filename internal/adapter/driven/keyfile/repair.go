package keyfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// maxSnippet bounds how much of the offending text is echoed in errors.
const maxSnippet = 64

// Parse decodes a key file body. Strict JSON is returned as-is; anything else
// goes through Repair and is parsed again. Failures wrap
// model.ErrMalformedCredential.
func Parse(data []byte) (model.Credential, error) {
	cred, _, err := parse(data)
	return cred, err
}

func parse(data []byte) (cred model.Credential, repaired bool, err error) {
	if cred, err := decodeObject(data); err == nil {
		return cred, false, nil
	}

	fixed, err := Repair(string(data))
	if err != nil {
		return nil, false, err
	}

	cred, err = decodeObject([]byte(fixed))
	if err != nil {
		return nil, false, malformed("repaired text is not valid JSON", fixed, err)
	}
	return cred, true, nil
}

// Repair rewrites relaxed `{key: value, ...}` text into strict JSON. Every
// bare key and value is quoted as a string, numeric-looking ones included.
// A pair is split on its first colon only, so URL values survive intact.
// Already-quoted tokens are kept verbatim.
func Repair(text string) (string, error) {
	s := strings.TrimSpace(text)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", malformed("missing enclosing braces", s, nil)
	}

	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return "{}", nil
	}

	pairs, err := splitOutsideQuotes(body, ',')
	if err != nil {
		return "", malformed(err.Error(), body, nil)
	}
	// Tolerate a single trailing comma.
	if n := len(pairs); n > 1 && strings.TrimSpace(pairs[n-1]) == "" {
		pairs = pairs[:n-1]
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range pairs {
		key, value, err := splitPair(pair)
		if err != nil {
			return "", err
		}
		qk, err := quoteToken(key)
		if err != nil {
			return "", err
		}
		qv, err := quoteToken(value)
		if err != nil {
			return "", err
		}
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(qk)
		buf.WriteString(": ")
		buf.WriteString(qv)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// splitPair separates a "key: value" segment at the first colon outside a
// quoted string.
func splitPair(pair string) (string, string, error) {
	idx := indexOutsideQuotes(pair, ':')
	if idx < 0 {
		return "", "", malformed("no key/value separator", pair, nil)
	}
	key := strings.TrimSpace(pair[:idx])
	value := strings.TrimSpace(pair[idx+1:])
	if key == "" {
		return "", "", malformed("empty key", pair, nil)
	}
	if value == "" {
		return "", "", malformed("empty value", pair, nil)
	}
	return key, value, nil
}

// quoteToken returns tok as a JSON string literal.
func quoteToken(tok string) (string, error) {
	switch tok[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(tok), &s); err != nil {
			return "", malformed("invalid quoted string", tok, err)
		}
		return tok, nil
	case '\'':
		if len(tok) < 2 || tok[len(tok)-1] != '\'' {
			return "", malformed("unterminated quoted string", tok, nil)
		}
		return jsonString(tok[1 : len(tok)-1]), nil
	}

	for _, r := range tok {
		switch {
		case unicode.IsSpace(r):
			return "", malformed("bare token contains whitespace", tok, nil)
		case strings.ContainsRune(`{}[]"'`, r):
			return "", malformed("nested or partially quoted value", tok, nil)
		}
	}
	return jsonString(tok), nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s) // strings always marshal
	return string(b)
}

// splitOutsideQuotes splits s on sep, ignoring separators inside single- or
// double-quoted runs.
func splitOutsideQuotes(s string, sep byte) ([]string, error) {
	var parts []string
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quoted string")
	}
	return append(parts, s[start:]), nil
}

func indexOutsideQuotes(s string, target byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == target:
			return i
		}
	}
	return -1
}

// decodeObject strictly decodes a single JSON object. Numbers are kept as
// json.Number so the record round-trips to the auth endpoint unchanged.
func decodeObject(data []byte) (model.Credential, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var cred model.Credential
	if err := dec.Decode(&cred); err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errors.New("not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return cred, nil
}

func malformed(reason, snippet string, cause error) error {
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	if cause != nil {
		return fmt.Errorf("%w: %s in %q: %v", model.ErrMalformedCredential, reason, snippet, cause)
	}
	return fmt.Errorf("%w: %s in %q", model.ErrMalformedCredential, reason, snippet)
}
