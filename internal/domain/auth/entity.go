package auth

// User is the identity resolved from a session.
// ID is stable across sessions; Nickname is what pages display.
type User struct {
	ID       string
	Nickname string
	Email    string
}
