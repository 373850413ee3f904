package bpm

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// ChoiceError reports a value outside a closed set of choices.
type ChoiceError struct {
	Field   string
	Value   string
	Choices []string
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected one of %s", e.Field, e.Value, strings.Join(e.Choices, ", "))
}

// Toggle is an on/off hardware switch.
type Toggle bool

const (
	Off Toggle = false
	On  Toggle = true
)

func (t Toggle) String() string {
	if t {
		return "on"
	}
	return "off"
}

// ParseToggle accepts "on" or "off".
func ParseToggle(field, s string) (Toggle, error) {
	switch s {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	}
	return Off, &ChoiceError{Field: field, Value: s, Choices: []string{"on", "off"}}
}

// BoardVersion is the RF front-end hardware revision.
type BoardVersion int

const (
	BoardV1 BoardVersion = iota + 1
	BoardV2
)

func (b BoardVersion) String() string {
	switch b {
	case BoardV1:
		return "rffe_v1"
	case BoardV2:
		return "rffe_v2"
	}
	return fmt.Sprintf("rffe_v?(%d)", int(b))
}

// ParseBoardVersion matches a board version string. Decorated names such
// as "rffe_v2_rev3" resolve to the revision they contain.
func ParseBoardVersion(s string) (BoardVersion, error) {
	switch {
	case strings.Contains(s, "rffe_v1"):
		return BoardV1, nil
	case strings.Contains(s, "rffe_v2"):
		return BoardV2, nil
	}
	return 0, &ChoiceError{Field: KeyBoardVersion, Value: s, Choices: []string{"rffe_v1", "rffe_v2"}}
}

// DigestMethod selects the content signature algorithm.
type DigestMethod int

const (
	DigestMD5 DigestMethod = iota + 1
	DigestSHA1
	DigestSHA256
)

var digestNames = map[DigestMethod]string{
	DigestMD5:    "md5",
	DigestSHA1:   "sha-1",
	DigestSHA256: "sha-256",
}

func (d DigestMethod) String() string {
	if name, ok := digestNames[d]; ok {
		return name
	}
	return fmt.Sprintf("digest(%d)", int(d))
}

// ParseDigestMethod accepts "md5", "sha-1" or "sha-256".
func ParseDigestMethod(s string) (DigestMethod, error) {
	switch s {
	case "md5":
		return DigestMD5, nil
	case "sha-1":
		return DigestSHA1, nil
	case "sha-256":
		return DigestSHA256, nil
	}
	return 0, &ChoiceError{Field: KeySignatureMethod, Value: s, Choices: []string{"md5", "sha-1", "sha-256"}}
}

// New returns a fresh hash for the method.
func (d DigestMethod) New() hash.Hash {
	switch d {
	case DigestMD5:
		return md5.New()
	case DigestSHA1:
		return sha1.New()
	case DigestSHA256:
		return sha256.New()
	}
	panic(fmt.Sprintf("bpm: unknown digest method %d", int(d)))
}

// Sum returns the lowercase hex digest of data.
func (d DigestMethod) Sum(data []byte) string {
	h := d.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
