//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseUserID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseUserID(f *testing.F) {
	// Seed corpus with interesting inputs
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)

		// Invariant 1: No panics (implicit - test would fail)

		// Invariant 2: Either valid ID or error, never both
		if err == nil {
			// Valid ID must round-trip 
			roundTrip, err2 := ParseUserID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}

		// Invariant 3: Non-UTF8 input must be rejected
		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures all ID types have consistent behavior.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errUser := ParseUserID(input)
		_, errTenant := ParseTenantID(input)
		_, errProperty := ParsePropertyID(input)
		_, errInterview := ParseInterviewID(input)

		if (errUser == nil) != (errTenant == nil) ||
			(errUser == nil) != (errProperty == nil) ||
			(errUser == nil) != (errInterview == nil) {
			t.Error("Inconsistent parsing across ID types")
		}
	})
}

// FuzzParseQuestionID checks that accepted question IDs only ever contain
// slug characters.
func FuzzParseQuestionID(f *testing.F) {
	f.Add("income")
	f.Add("move in")
	f.Add("\x00")

	f.Fuzz(func(t *testing.T, input string) {
		q, err := ParseQuestionID(input)
		if err != nil {
			return
		}
		if q == "" || len(q) > maxQuestionIDLength {
			t.Errorf("accepted invalid question id %q", q)
		}
		if !utf8.ValidString(string(q)) {
			t.Errorf("accepted non-UTF8 question id %q", q)
		}
	})
}
