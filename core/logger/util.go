package logger

import (
	"errors"
	"regexp"
	"time"
)

// Status maps an error to the status field value.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Took returns the rounded time elapsed since start.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Bot API errors echo the request URL, which embeds the token.
var tokenPattern = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// RedactToken masks the token in Bot API URLs.
func RedactToken(s string) string {
	return tokenPattern.ReplaceAllString(s, "bot<redacted>")
}

// RedactError returns err, or a copy of its message with the token masked.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	if msg := RedactToken(err.Error()); msg != err.Error() {
		return errors.New(msg)
	}
	return err
}
