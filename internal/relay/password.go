package relay

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"strconv"
)

type passwordKind uint8

const (
	passwordMissing passwordKind = iota
	passwordNull
	passwordBool
	passwordNumber
	passwordString
	passwordComposite
)

// Password is the password field of a room request as it appeared on the
// wire. Two passwords match only when they have the same JSON kind and the
// same value: a missing field matches only a missing field, null matches only
// null, and objects or arrays never match anything.
type Password struct {
	kind  passwordKind
	value string
}

// TextPassword returns the password sent as the JSON string s.
func TextPassword(s string) Password {
	return Password{kind: passwordString, value: s}
}

// parsePassword reads the password field from a decoded object.
func parsePassword(fields map[string]json.RawMessage) Password {
	raw, ok := fields["password"]
	if !ok {
		return Password{kind: passwordMissing}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Password{kind: passwordMissing}
	}

	switch raw[0] {
	case 'n':
		return Password{kind: passwordNull}
	case 't', 'f':
		return Password{kind: passwordBool, value: string(raw)}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Password{kind: passwordComposite}
		}
		return TextPassword(s)
	case '{', '[':
		return Password{kind: passwordComposite}
	}

	// Numbers compare by value, so 1, 1.0 and 1e0 are the same password.
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return Password{kind: passwordNumber, value: string(raw)}
	}
	return Password{kind: passwordNumber, value: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Matches reports whether got opens a room protected by p. String values are
// compared in constant time.
func (p Password) Matches(got Password) bool {
	if p.kind != got.kind || p.kind == passwordComposite {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.value), []byte(got.value)) == 1
}
