// Package utils provides utility functions for the application.
package utils

import (
	"strings"
	"unicode/utf8"
)

func ToPtr[T any](v T) *T {
	return &v
}

func IsTrue(b *bool) bool {
	return b != nil && *b
}

// IsTrueOrUnset treats a missing flag as true
func IsTrueOrUnset(b *bool) bool {
	return b == nil || *b
}

// Deref returns the pointed value or the zero value
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// StringPtrOrNil returns nil for blank strings
func StringPtrOrNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
