// Package tagcode encodes and decodes the fixed-width card code written
// to the NFC tags. The code is a 42-character ASCII record; short fields
// are padded with '-'.
package tagcode

import (
	"fmt"
	"strings"
)

// Field layout within the encoded record.
const (
	// EncodedLen is the full length of an encoded record including the
	// trailing filler.
	EncodedLen = 42

	// MinDecodeLen is the minimum length required to decode all fields.
	MinDecodeLen = 41

	identPrefix = "YG"
	filler      = "XXX"
)

// Card holds the decoded fields of a tag's card code.
type Card struct {
	Identifier string // 4 chars, starts with "YG"
	Passcode   string // 5-10 digits, the database key
	KonamiID   string // up to 8 digits
	Variant    string // 4 digits
	SetID      string // 3-4 chars
	Lang       string // 2 chars
	Number     string // 3 digits
	Rarity     string // up to 2 chars
	Edition    string // up to 2 chars
}

// SetString returns the printed set designation, e.g. "LOB-EN001".
func (c Card) SetString() string {
	if c.SetID == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s%s", c.SetID, c.Lang, c.Number)
}

// Encode validates c and produces the fixed-width record stored on a tag.
func Encode(c Card) (string, error) {
	if len(c.Identifier) != 4 || !strings.HasPrefix(c.Identifier, identPrefix) {
		return "", fmt.Errorf("identifier must be 4 characters and start with %q", identPrefix)
	}
	if len(c.Passcode) < 5 || !isDigits(c.Passcode) {
		return "", fmt.Errorf("passcode must be 5 or more digits")
	}
	if len(c.Passcode) > 10 {
		return "", fmt.Errorf("passcode longer than 10 digits")
	}
	if c.KonamiID == "" || len(c.KonamiID) > 8 || !isDigits(c.KonamiID) {
		return "", fmt.Errorf("konami id must be numeric and at most 8 digits")
	}
	if len(c.Variant) != 4 || !isDigits(c.Variant) {
		return "", fmt.Errorf("variant must be a 4-digit number")
	}
	if len(c.SetID) < 3 || len(c.SetID) > 4 {
		return "", fmt.Errorf("set id must be 3-4 characters")
	}
	if len(c.Lang) != 2 {
		return "", fmt.Errorf("language must be exactly 2 characters")
	}
	if len(c.Number) != 3 || !isDigits(c.Number) {
		return "", fmt.Errorf("card number must be exactly 3 digits")
	}
	if len(c.Rarity) > 2 {
		return "", fmt.Errorf("rarity must be at most 2 characters")
	}
	if len(c.Edition) > 2 {
		return "", fmt.Errorf("edition must be at most 2 characters")
	}

	return c.Identifier +
		pad(c.Passcode, 10) +
		pad(c.KonamiID, 8) +
		c.Variant +
		pad(c.SetID, 4) +
		c.Lang +
		c.Number +
		pad(c.Rarity, 2) +
		pad(c.Edition, 2) +
		filler, nil
}

// Decode parses an encoded record read from a tag. Trailing bytes beyond
// the known fields (the filler plus any extra the reader captured) are
// ignored.
func Decode(data string) (Card, error) {
	if len(data) < MinDecodeLen {
		return Card{}, fmt.Errorf("encoded record too short: %d bytes", len(data))
	}

	c := Card{
		Identifier: data[0:4],
		Passcode:   strings.TrimRight(data[4:14], "-"),
		KonamiID:   strings.TrimRight(data[14:22], "-"),
		Variant:    data[22:26],
		SetID:      strings.TrimRight(data[26:30], "-"),
		Lang:       data[30:32],
		Number:     data[32:35],
		Rarity:     strings.TrimRight(data[35:37], "- "),
		Edition:    strings.TrimRight(data[37:39], "- "),
	}

	if !strings.HasPrefix(c.Identifier, identPrefix) {
		return Card{}, fmt.Errorf("invalid identifier %q", c.Identifier)
	}
	if len(c.Passcode) < 5 || !isDigits(c.Passcode) {
		return Card{}, fmt.Errorf("invalid passcode %q", c.Passcode)
	}
	if c.KonamiID == "" || !isDigits(c.KonamiID) {
		return Card{}, fmt.Errorf("invalid konami id %q", c.KonamiID)
	}
	if !isDigits(c.Variant) {
		return Card{}, fmt.Errorf("invalid variant %q", c.Variant)
	}
	if len(c.SetID) < 3 {
		return Card{}, fmt.Errorf("invalid set id %q", c.SetID)
	}
	if !isDigits(c.Number) {
		return Card{}, fmt.Errorf("invalid card number %q", c.Number)
	}

	return c, nil
}

// Parse interprets a raw reader payload. A full encoded record is
// decoded; a bare numeric scan (keyboard and serial readers report the
// card id directly) is accepted as a passcode-only code.
func Parse(payload string) (Card, error) {
	if len(payload) >= MinDecodeLen {
		return Decode(payload)
	}
	if len(payload) >= 5 && isDigits(payload) {
		return Card{Passcode: payload}, nil
	}
	return Card{}, fmt.Errorf("unrecognized tag payload (%d bytes)", len(payload))
}

func pad(s string, width int) string {
	for len(s) < width {
		s += "-"
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
