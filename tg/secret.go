package tg

import "log/slog"

// Redacted replaces a session token wherever it would be printed.
const Redacted = "[REDACTED]"

// SecretToken wraps a session token so that it never reaches logs, fmt
// output or serialized config. Value is the only way to get it back.
type SecretToken string

// Value returns the token. Use it only to build request URLs.
func (s SecretToken) Value() string { return string(s) }

func (s SecretToken) String() string   { return Redacted }
func (s SecretToken) GoString() string { return `tg.SecretToken("` + Redacted + `")` }

// LogValue keeps the token out of slog output, including nested groups.
func (s SecretToken) LogValue() slog.Value { return slog.StringValue(Redacted) }

// MarshalText keeps the token out of JSON and text encodings.
func (s SecretToken) MarshalText() ([]byte, error) { return []byte(Redacted), nil }

// IsEmpty reports whether no token is set.
func (s SecretToken) IsEmpty() bool { return s == "" }

// Hint masks all but the last four characters, so logs can tell sessions
// apart. Tokens of eight characters or fewer are fully redacted.
func (s SecretToken) Hint() string {
	if len(s) <= 8 {
		return Redacted
	}
	return "****" + string(s[len(s)-4:])
}
