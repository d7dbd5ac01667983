package auth

import "errors"

var (
	ErrNicknameRequired = errors.New("nickname is required")
	ErrSessionIssue     = errors.New("could not issue session")
)
