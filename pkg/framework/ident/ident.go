// Package ident provides bounded identifiers used to derive port names.
package ident

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength is the longest identifier accepted, in bytes. It leaves room for
// a client prefix within the 256 byte full port name limit of common hosts.
const MaxLength = 128

var (
	// ErrNameEmpty is returned for empty identifiers
	ErrNameEmpty = errors.New("ident: name is empty")
	// ErrNameTooLong is returned when an identifier exceeds MaxLength
	ErrNameTooLong = errors.New("ident: name too long")
	// ErrNameInvalid is returned for identifiers with separators or control characters
	ErrNameInvalid = errors.New("ident: invalid character in name")
)

// Name is a validated identifier. The zero value is not valid.
type Name struct {
	s string
}

// New validates s and returns it as a Name
func New(s string) (Name, error) {
	if err := Validate(s); err != nil {
		return Name{}, err
	}
	return Name{s: s}, nil
}

// MustNew is like New but panics on invalid input
func MustNew(s string) Name {
	n, err := New(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Validate reports whether s can be used as a Name
func Validate(s string) error {
	if s == "" {
		return ErrNameEmpty
	}
	if len(s) > MaxLength {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrNameTooLong, len(s), MaxLength)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: not UTF-8", ErrNameInvalid)
	}
	// ':' separates client and port in full port names
	if i := strings.IndexFunc(s, func(r rune) bool {
		return r == ':' || unicode.IsControl(r)
	}); i >= 0 {
		return fmt.Errorf("%w: %q at byte %d", ErrNameInvalid, s[i], i)
	}
	return nil
}

// Concat returns a new Name made of n followed by suffix
func (n Name) Concat(suffix string) (Name, error) {
	return New(n.s + suffix)
}

// String returns the identifier
func (n Name) String() string {
	return n.s
}

// IsZero reports whether n was never initialised
func (n Name) IsZero() bool {
	return n.s == ""
}
