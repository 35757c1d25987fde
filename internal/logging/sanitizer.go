package logging

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce         = randomNonce()
	sensitiveKeyParts = []string{"private", "secret", "session_key", "payload", "plaintext", "passphrase", "password", "token"}
	usernameKeys      = map[string]struct{}{
		"username":  {},
		"usernames": {},
		"sender":    {},
		"recipient": {},
		"mailbox":   {},
	}
)

// SanitizingHandler redacts sensitive attributes before passing records on.
type SanitizingHandler struct {
	next        slog.Handler
	fingerprint bool
}

// WrapHandler wraps next. With fingerprint set, username attributes are
// replaced by per-process fingerprints.
func WrapHandler(next slog.Handler, fingerprint bool) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next, fingerprint: fingerprint}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(h.sanitize(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		clean = append(clean, h.sanitize(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean), fingerprint: h.fingerprint}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), fingerprint: h.fingerprint}
}

func (h *SanitizingHandler) sanitize(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	key := strings.ToLower(strings.TrimSpace(attr.Key))

	if isSensitiveKey(key) {
		return slog.String(attr.Key, redactedValue)
	}
	if h.fingerprint {
		if _, ok := usernameKeys[key]; ok {
			return slog.Any(attr.Key, fingerprintValue(attr.Value))
		}
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		clean := make([]any, 0, len(group))
		for _, a := range group {
			clean = append(clean, h.sanitize(a))
		}
		return slog.Group(attr.Key, clean...)
	}
	return attr
}

// Fingerprint returns a stable per-process fingerprint of value.
func Fingerprint(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func fingerprintValue(v slog.Value) any {
	if v.Kind() == slog.KindAny {
		if names, ok := v.Any().([]string); ok {
			out := make([]string, len(names))
			for i, name := range names {
				out[i] = Fingerprint(name)
			}
			return out
		}
	}
	if v.Kind() == slog.KindString {
		return Fingerprint(v.String())
	}
	return Fingerprint(fmt.Sprint(v.Any()))
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
