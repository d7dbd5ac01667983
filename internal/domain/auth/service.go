package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/photoshare/photoshare-web/internal/pkg/jwt"
)

// userNamespace derives stable user ids from nicknames
var userNamespace = uuid.MustParse("6f1c2a0e-3d5b-4c8e-9a7f-2b1d0e4c6a58")

// Service issues sessions for the development identity provider
type Service struct {
	jwtSvc *jwt.Service
}

// NewService creates auth service
func NewService(jwtSvc *jwt.Service) *Service {
	return &Service{jwtSvc: jwtSvc}
}

// Session is a signed session ready to be stored in a cookie
type Session struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// SignIn resolves a nickname to a user and signs a session for it.
// The same nickname always maps to the same user id.
func (s *Service) SignIn(nickname, email string) (*Session, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrNicknameRequired
	}

	u := &User{
		ID:       UserIDFor(nickname),
		Nickname: nickname,
		Email:    strings.TrimSpace(email),
	}

	token, expiresAt, err := s.jwtSvc.GenerateSessionToken(u.ID, u.Nickname, u.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionIssue, err)
	}

	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// UserIDFor returns the user id for a nickname (case-insensitive)
func UserIDFor(nickname string) string {
	return uuid.NewSHA1(userNamespace, []byte(strings.ToLower(strings.TrimSpace(nickname)))).String()
}
