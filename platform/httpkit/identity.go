// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles known to the CRM.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleCommercial = "commercial"
	RoleMarketing  = "marketing"
)

// Identity is the explicit session context of the caller. Handlers build it
// from the verified access token and pass it to services on every call.
type Identity interface {
	UserID() uuid.UUID
	Email() string
	Roles() []string
	HasRole(role string) bool
	// IsManager reports admin or manager privileges.
	IsManager() bool
	// ScopeUserID returns the caller's id when their visibility is limited to
	// records assigned to them (commercial staff), nil otherwise.
	ScopeUserID() *uuid.UUID
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	email         string
	roles         []string
	authenticated bool
}

// NewIdentity builds an authenticated identity. Used by the CLI, workers and tests.
func NewIdentity(userID uuid.UUID, email string, roles ...string) Identity {
	return &identity{userID: userID, email: email, roles: roles, authenticated: true}
}

func (i *identity) UserID() uuid.UUID { return i.userID }
func (i *identity) Email() string     { return i.email }
func (i *identity) Roles() []string   { return i.roles }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsManager() bool {
	return i.HasRole(RoleAdmin) || i.HasRole(RoleManager)
}

func (i *identity) ScopeUserID() *uuid.UUID {
	if i.IsManager() || !i.HasRole(RoleCommercial) {
		return nil
	}
	id := i.userID
	return &id
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}
	email := c.GetString(ContextEmailKey)

	return &identity{
		userID:        uid,
		email:         email,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
