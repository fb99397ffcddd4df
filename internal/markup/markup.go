// Package markup names the text formats a comment body may be written in and
// renders bodies to HTML.
package markup

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a comment markup language
type Kind int

const (
	Markdown  Kind = 1
	Textile   Kind = 2
	ReST      Kind = 3
	Plaintext Kind = 5
)

// Default is used when a comment does not name its markup
const Default = Plaintext

var names = map[Kind]string{
	Markdown:  "markdown",
	Textile:   "textile",
	ReST:      "restructuredtext",
	Plaintext: "plaintext",
}

var aliases = map[string]Kind{
	"markdown":         Markdown,
	"md":               Markdown,
	"textile":          Textile,
	"rest":             ReST,
	"rst":              ReST,
	"restructuredtext": ReST,
	"plaintext":        Plaintext,
	"plain":            Plaintext,
	"text":             Plaintext,
}

// All returns every supported kind in display order
func All() []Kind {
	return []Kind{Markdown, Textile, ReST, Plaintext}
}

// Valid reports whether k is a supported kind
func (k Kind) Valid() bool {
	_, ok := names[k]
	return ok
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Parse accepts either the numeric code or a name. Empty input yields Default.
func Parse(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		k := Kind(n)
		if !k.Valid() {
			return 0, fmt.Errorf("unknown markup kind %d", n)
		}
		return k, nil
	}
	if k, ok := aliases[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown markup kind %q", s)
}

// UnmarshalYAML lets policy files list markup kinds by name or number
func (k *Kind) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalJSON accepts a number or a name. null yields Default.
func (k *Kind) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = Default
		return nil
	}
	parsed, err := Parse(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
