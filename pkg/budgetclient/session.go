package budgetclient

import (
	"errors"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Account это либо AdminAccount, либо ClientAccount.
type Account interface {
	Kind() string
	AccountID() uuid.UUID
	isAccount()
}

type AdminAccount struct {
	User User
}

func (AdminAccount) Kind() string           { return KindAdmin }
func (a AdminAccount) AccountID() uuid.UUID { return a.User.ID }
func (AdminAccount) isAccount()             {}

type ClientAccount struct {
	Client ClientInfo
}

func (ClientAccount) Kind() string           { return KindClient }
func (a ClientAccount) AccountID() uuid.UUID { return a.Client.ID }
func (ClientAccount) isAccount()             {}

const (
	KindAdmin  = "admin"
	KindClient = "client"
)

// Session хранит токены и аккаунт текущего пользователя. Безопасна для
// конкурентного использования.
type Session struct {
	mu           sync.RWMutex
	token        string
	refreshToken string
	userID       string
	account      Account
}

// Init заполняет сессию после входа. X-User-ID берется из subject токена без
// проверки подписи: проверяет ее сервер.
func (s *Session) Init(token, refreshToken string, account Account) error {
	subject, err := tokenSubject(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.refreshToken = refreshToken
	s.userID = subject
	s.account = account
	return nil
}

// Clear забывает токены и аккаунт.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.refreshToken = ""
	s.userID = ""
	s.account = nil
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Session) Account() Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) credentials() (token, userID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.userID
}

func tokenSubject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
