package domain

import (
	"regexp"
	"time"
)

const (
	MinPasswordLength = 15
	MaxPasswordLength = 45
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

type User struct {
	ID             int64
	UniqueID       string
	Email          string
	PasswordHash   string
	SessionToken   string
	SessionExpires time.Time
	CreatedAt      time.Time
}

func IsEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidateCredentials returns the list of user-correctable problems with a
// registration request, empty when the pair is acceptable.
func ValidateCredentials(email, password string) []string {
	var problems []string

	if !IsEmail(email) {
		problems = append(problems, "Email is not valid")
	}
	if len(password) < MinPasswordLength {
		problems = append(problems, "Password is too short.")
	} else if len(password) > MaxPasswordLength {
		problems = append(problems, "Password is too long.")
	}

	return problems
}
