package credcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathIsValidLengthBounds(t *testing.T) {
	assert.False(t, IsValidLength("short"))
	assert.True(t, IsValidLength("exactlyTwelve12"))
	assert.False(t, IsValidLength(""))
}

func TestHappyPathScorePasswordStrongCandidate(t *testing.T) {
	report := ScorePassword("Tr0ub4dor&Zebra!Canyon")
	assert.Empty(t, report.FailedRequirements)
	assert.Equal(t, StrengthStrong, report.Strength)
	assert.Greater(t, report.EntropyBits, 0)
}

func TestSadPathScorePasswordTooShort(t *testing.T) {
	report := ScorePassword("Ab1!")
	assert.Contains(t, report.FailedRequirements, "must be at least 12 characters")
}

func TestSadPathScorePasswordTooLong(t *testing.T) {
	long := ""
	for i := 0; i < 130; i++ {
		long += "a"
	}

	report := ScorePassword(long)
	assert.Contains(t, report.FailedRequirements, "must be at most 128 characters")
}

func TestSadPathScorePasswordInsufficientClasses(t *testing.T) {
	report := ScorePassword("alllowercaseletters")
	assert.Contains(t, report.FailedRequirements, "must contain at least 3 of: uppercase, lowercase, digit, special character")
}

func TestSadPathScorePasswordBannedPassword(t *testing.T) {
	report := ScorePassword("Password123!")
	assert.Contains(t, report.FailedRequirements, "must not be a commonly used password")
}

func TestSadPathScorePasswordRepeatRun(t *testing.T) {
	report := ScorePassword("Aaaa1111bbbb!!")
	assert.Contains(t, report.FailedRequirements, "must not contain 4 or more consecutive identical characters")
}

func TestSadPathScorePasswordSequentialPattern(t *testing.T) {
	report := ScorePassword("myAbcd1234Pass!")
	assert.Contains(t, report.FailedRequirements, "must not contain an obvious sequential pattern")
}

func TestHappyPathSequencePatternIsSoftFailure(t *testing.T) {
	password := "myAbcd1234Pass!"
	report := ScorePassword(password)

	assert.Equal(t, []string{"must not contain an obvious sequential pattern"}, report.FailedRequirements)
	assert.True(t, IsAcceptable(password))
}

func TestSadPathIsAcceptableRejectsHardFailures(t *testing.T) {
	assert.False(t, IsAcceptable("short"))
	assert.False(t, IsAcceptable("Password123!"))
}

func TestHappyPathIsAcceptableAcceptsStrongPassword(t *testing.T) {
	assert.True(t, IsAcceptable("Tr0ub4dor&Zebra!Canyon"))
}

func TestHappyPathBucketBoundaries(t *testing.T) {
	assert.Equal(t, StrengthWeak, bucketFor(0))
	assert.Equal(t, StrengthFair, bucketFor(30))
	assert.Equal(t, StrengthGood, bucketFor(50))
	assert.Equal(t, StrengthStrong, bucketFor(70))
}
