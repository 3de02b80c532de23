package schema

import (
	"strconv"
	"strings"
)

// NormalizeEmail lowercases and trims an email so that rows reported by
// different collectors group under the same member.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part of an email before '@'.
// Strings without '@' are returned unchanged.
func EmailLocalPart(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	return email[:at]
}

// FormatMembers joins the first n member emails by their local part,
// noting how many were left out.
func FormatMembers(emails []string, n int) string {
	if len(emails) == 0 {
		return "-"
	}
	if n <= 0 || n > len(emails) {
		n = len(emails)
	}
	parts := make([]string, 0, n)
	for _, e := range emails[:n] {
		parts = append(parts, EmailLocalPart(e))
	}
	out := strings.Join(parts, ", ")
	if rest := len(emails) - n; rest > 0 {
		out += " +" + strconv.Itoa(rest)
	}
	return out
}
