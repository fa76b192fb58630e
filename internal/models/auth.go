package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents roles issued by the identity service.
type UserRole string

const (
	RoleOwner      UserRole = "OWNER"
	RoleAdmin      UserRole = "ADMIN"
	RoleDispatcher UserRole = "DISPATCHER"
	RoleMember     UserRole = "MEMBER"
)

// ComplianceManagers may create snapshots, provision tokens and manage company documents.
var ComplianceManagers = []UserRole{RoleOwner, RoleAdmin}

// Dispatchers may assign workers to work orders.
var Dispatchers = []UserRole{RoleOwner, RoleAdmin, RoleDispatcher}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	CompanyID string   `json:"company_id"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	jwt.RegisteredClaims
}
