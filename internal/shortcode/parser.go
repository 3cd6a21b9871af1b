// Package shortcode implements the "> Verb ..." command language used by
// the dashboard and the CLI to edit the catalog
package shortcode

import (
	"errors"
	"strings"
	"unicode"
)

// Prefix starts every shortcode line
const Prefix = ">"

var (
	// ErrNotShortcode is returned for lines that do not start with Prefix
	// or carry no verb
	ErrNotShortcode = errors.New("not a shortcode")
	// ErrUnterminatedQuote is returned when a quoted argument never closes
	ErrUnterminatedQuote = errors.New("unterminated quote")
)

// Command is a tokenized shortcode line
type Command struct {
	Raw string
	// Word is the first token as typed; Verb is its lowercase form
	Word string
	Verb string
	Args []string
}

// Parse splits a shortcode line into its verb and arguments. Double
// quotes (straight or curly) group words into one argument.
func Parse(line string) (*Command, error) {
	raw := strings.TrimSpace(line)
	rest, ok := strings.CutPrefix(raw, Prefix)
	if !ok {
		return nil, ErrNotShortcode
	}
	tokens, err := tokenize(rest)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrNotShortcode
	}
	return &Command{
		Raw:  raw,
		Word: tokens[0],
		Verb: strings.ToLower(tokens[0]),
		Args: tokens[1:],
	}, nil
}

func isOpenQuote(r rune) bool  { return r == '"' || r == '“' }
func isCloseQuote(r rune) bool { return r == '"' || r == '”' }

func tokenize(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	quoted := false // current token came from quotes, so keep it even if empty

	flush := func() {
		if cur.Len() > 0 || quoted {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		quoted = false
	}

	for _, r := range s {
		switch {
		case inQuote && isCloseQuote(r):
			inQuote = false
			flush()
		case inQuote:
			cur.WriteRune(r)
		case isOpenQuote(r):
			flush()
			inQuote = true
			quoted = true
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, ErrUnterminatedQuote
	}
	flush()
	return tokens, nil
}
