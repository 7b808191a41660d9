package validation

import (
	"regexp"

	"github.com/99minutos/user-registry/internal/core/domain"
)

const (
	MsgEmailBlank          = "email may not be blank"
	MsgEmailMalformed      = "must be a well-formed email address"
	MsgUsernameBlank       = "username may not be blank"
	MsgUsernameSize        = "username should have size [{min},{max}]"
	MsgUsernamePattern     = `"username" should start with a letter and should only accept letters and numbers`
	MsgReservedWord        = "You are using a Reserved Word"
	MsgFirstNameBlank      = "firstName may not be blank"
	MsgLastNameBlank       = "lastName may not be blank"
	MsgHashedPasswordBlank = "hashedPassword may not be blank"
)

// DefaultReservedUsernames is used when no blacklist is configured.
var DefaultReservedUsernames = []string{"admin", "root"}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]+$`)

// CreateUserRules returns the rule set applied to registration requests.
func CreateUserRules(reserved ReservedWords) *Engine[domain.CreateUserRequest] {
	var rules []Rule[domain.CreateUserRequest]

	rules = append(rules, Field("email",
		func(r domain.CreateUserRequest) string { return r.Email },
		NotBlank(MsgEmailBlank),
		Email(MsgEmailMalformed),
	)...)

	rules = append(rules, Field("username",
		func(r domain.CreateUserRequest) string { return r.Username },
		NotBlank(MsgUsernameBlank),
		Size(domain.UsernameMinLength, domain.UsernameMaxLength, MsgUsernameSize),
		Pattern(usernamePattern, MsgUsernamePattern),
		NotReserved(reserved, MsgReservedWord),
	)...)

	rules = append(rules, Field("firstName",
		func(r domain.CreateUserRequest) string { return r.FirstName },
		NotBlank(MsgFirstNameBlank),
	)...)

	rules = append(rules, Field("lastName",
		func(r domain.CreateUserRequest) string { return r.LastName },
		NotBlank(MsgLastNameBlank),
	)...)

	rules = append(rules, Field("hashedPassword",
		func(r domain.CreateUserRequest) string { return r.HashedPassword },
		NotBlank(MsgHashedPasswordBlank),
	)...)

	return NewEngine(rules...)
}
