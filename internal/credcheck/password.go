// Package credcheck implements the Provider Key & Password Format
// Checks (spec.md §4.10): deterministic password-strength scoring and
// a pluggable provider API-key format registry.
package credcheck

import (
	"math"
	"strings"

	"secvault/internal/magic"
)

// Strength is a password-strength bucket.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthFair   Strength = "fair"
	StrengthGood   Strength = "good"
	StrengthStrong Strength = "strong"
)

// PasswordReport is the outcome of ScorePassword.
type PasswordReport struct {
	Score              int
	Strength           Strength
	EntropyBits        int
	FailedRequirements []string
}

// charClass is one of the four character classes counted toward the
// "at least 3 of 4" requirement and the active-charset-size entropy
// calculation.
type charClass struct {
	name string
	size int
	in   func(r rune) bool
}

var charClasses = []charClass{
	{"uppercase", 26, func(r rune) bool { return r >= 'A' && r <= 'Z' }},
	{"lowercase", 26, func(r rune) bool { return r >= 'a' && r <= 'z' }},
	{"digit", 10, func(r rune) bool { return r >= '0' && r <= '9' }},
	{"special", 32, func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}},
}

// sequences is the fixed set of sequential alphabets/digits/keyboard
// rows any 4-character substring of a candidate password is penalized
// for matching (case-insensitive, and checked in reverse too).
var sequences = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"0123456789",
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
}

// IsValidLength reports whether length satisfies the fixed bounds.
func IsValidLength(password string) bool {
	return len(password) >= magic.PasswordMinLength && len(password) <= magic.PasswordMaxLength
}

// ScorePassword computes the deterministic strength report for
// password: a 0..100 score from length, character-class count, and
// penalties, bucketed into weak/fair/good/strong, plus an estimated
// entropy in bits.
func ScorePassword(password string) PasswordReport {
	var failed []string

	if len(password) < magic.PasswordMinLength {
		failed = append(failed, "must be at least 12 characters")
	}

	if len(password) > magic.PasswordMaxLength {
		failed = append(failed, "must be at most 128 characters")
	}

	classesPresent, classSizeSum := presentClasses(password)
	if len(classesPresent) < magic.PasswordMinClasses {
		failed = append(failed, "must contain at least 3 of: uppercase, lowercase, digit, special character")
	}

	if isBanned(password) {
		failed = append(failed, "must not be a commonly used password")
	}

	if hasRepeatRun(password) {
		failed = append(failed, "must not contain 4 or more consecutive identical characters")
	}

	hasSequence := hasSequenceRun(password)
	if hasSequence {
		failed = append(failed, "must not contain an obvious sequential pattern")
	}

	score := computeScore(password, len(classesPresent), hasSequence)

	entropyBits := 0
	if classSizeSum > 0 && len(password) > 0 {
		entropyBits = int(math.Floor(float64(len(password)) * math.Log2(float64(classSizeSum))))
	}

	return PasswordReport{
		Score:              score,
		Strength:           bucketFor(score),
		EntropyBits:        entropyBits,
		FailedRequirements: failed,
	}
}

// IsAcceptable reports whether password satisfies every hard
// requirement (length, class count, banned-list, repeat-run).
// Sequence penalties reduce the score but do not, on their own, reject
// a password.
func IsAcceptable(password string) bool {
	report := ScorePassword(password)
	for _, f := range report.FailedRequirements {
		if f != "must not contain an obvious sequential pattern" {
			return false
		}
	}

	return true
}

func presentClasses(password string) (present []string, sizeSum int) {
	for _, class := range charClasses {
		for _, r := range password {
			if class.in(r) {
				present = append(present, class.name)
				sizeSum += class.size

				break
			}
		}
	}

	return present, sizeSum
}

func hasRepeatRun(password string) bool {
	run := 1
	for i := 1; i < len(password); i++ {
		if password[i] == password[i-1] {
			run++
			if run >= magic.RepeatRunMinimum {
				return true
			}
		} else {
			run = 1
		}
	}

	return false
}

func hasSequenceRun(password string) bool {
	lower := strings.ToLower(password)

	for _, seq := range sequences {
		reversed := reverseString(seq)

		for i := 0; i+magic.SequenceRunLength <= len(lower); i++ {
			window := lower[i : i+magic.SequenceRunLength]
			if strings.Contains(seq, window) || strings.Contains(reversed, window) {
				return true
			}
		}
	}

	return false
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	return string(runes)
}

func computeScore(password string, classCount int, hasSequence bool) int {
	score := 0

	lengthScore := len(password) * 4
	if lengthScore > 40 {
		lengthScore = 40
	}

	score += lengthScore
	score += classCount * 15

	if isBanned(password) {
		score -= 40
	}

	if hasRepeatRun(password) {
		score -= 15
	}

	if hasSequence {
		score -= 10
	}

	if score < 0 {
		score = 0
	}

	if score > magic.StrengthMaxScore {
		score = magic.StrengthMaxScore
	}

	return score
}

func bucketFor(score int) Strength {
	switch {
	case score < magic.StrengthWeakMax:
		return StrengthWeak
	case score < magic.StrengthFairMax:
		return StrengthFair
	case score < magic.StrengthGoodMax:
		return StrengthGood
	default:
		return StrengthStrong
	}
}

// bannedPasswords is normalized (lowercase, non-alphanumerics
// stripped) on insertion into the set below.
var bannedPasswords = buildBannedSet([]string{
	"password", "password1", "password123", "123456", "123456789",
	"qwerty", "qwerty123", "letmein", "welcome", "admin", "admin123",
	"iloveyou", "monkey", "dragon", "master", "superman", "trustno1",
	"abc123", "111111", "123123", "football", "baseball", "princess",
})

func buildBannedSet(raw []string) map[string]struct{} {
	set := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		set[normalizeForBanCheck(p)] = struct{}{}
	}

	return set
}

func normalizeForBanCheck(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func isBanned(password string) bool {
	_, ok := bannedPasswords[normalizeForBanCheck(password)]
	return ok
}
