package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Constraint is a predicate over a string value with the message reported
// when it fails.
type Constraint struct {
	Message string
	Valid   func(string) bool
}

// emailChecker is safe for concurrent use once built.
var emailChecker = validator.New()

// NotBlank rejects empty and whitespace-only values.
func NotBlank(msg string) Constraint {
	return Constraint{
		Message: msg,
		Valid:   func(s string) bool { return strings.TrimSpace(s) != "" },
	}
}

// Size bounds the rune length of a value, inclusive on both ends. The
// message may use {min} and {max} placeholders.
func Size(lo, hi int, msg string) Constraint {
	msg = strings.NewReplacer("{min}", fmt.Sprint(lo), "{max}", fmt.Sprint(hi)).Replace(msg)
	return Constraint{
		Message: msg,
		Valid: func(s string) bool {
			n := utf8.RuneCountInString(s)
			return n >= lo && n <= hi
		},
	}
}

// Pattern requires the whole value to match re.
func Pattern(re *regexp.Regexp, msg string) Constraint {
	return Constraint{
		Message: msg,
		Valid:   re.MatchString,
	}
}

// Email requires well-formed email syntax. Empty values pass so that a
// missing address is reported only by NotBlank.
func Email(msg string) Constraint {
	return Constraint{
		Message: msg,
		Valid: func(s string) bool {
			if s == "" {
				return true
			}
			return emailChecker.Var(s, "email") == nil
		},
	}
}

// NotReserved rejects values that equal any of the reserved words.
func NotReserved(words ReservedWords, msg string) Constraint {
	return Constraint{
		Message: msg,
		Valid:   words.Allows,
	}
}
