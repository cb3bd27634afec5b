package auth

import (
	"github.com/google/uuid"

	"example.com/daily-budget/backend/internal/models"
)

// Kind различает два вида аккаунтов: сотрудников (users) и клиентов (clients).
type Kind string

const (
	KindAdmin  Kind = "admin"
	KindClient Kind = "client"
)

func (k Kind) Valid() bool {
	return k == KindAdmin || k == KindClient
}

// Principal описывает аутентифицированного субъекта запроса.
// Для KindAdmin Role содержит роль сотрудника (admin или manager).
type Principal struct {
	Kind Kind
	ID   uuid.UUID
	Role string
}

func AdminPrincipal(user models.User) Principal {
	return Principal{Kind: KindAdmin, ID: user.ID, Role: string(user.Role)}
}

func ClientPrincipal(client models.Client) Principal {
	return Principal{Kind: KindClient, ID: client.ID}
}

func (p Principal) IsAdmin() bool {
	return p.Kind == KindAdmin
}

func (p Principal) IsClient() bool {
	return p.Kind == KindClient
}

// HasRole сообщает, что субъект является сотрудником с одной из ролей.
func (p Principal) HasRole(roles ...models.UserRole) bool {
	if p.Kind != KindAdmin {
		return false
	}
	for _, role := range roles {
		if p.Role == string(role) {
			return true
		}
	}
	return false
}

// CanAccessClient сообщает, может ли субъект читать данные клиента clientID.
func (p Principal) CanAccessClient(clientID uuid.UUID) bool {
	if p.Kind == KindAdmin {
		return true
	}
	return p.Kind == KindClient && p.ID == clientID
}
