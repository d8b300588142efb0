package auth

import (
	"errors"
	"fmt"
	"time"

	"warehouse-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const TokenTTL = 24 * time.Hour

// Session is the authenticated caller. PIN sessions carry no user id.
type Session struct {
	UserID    uint            `json:"user_id"`
	Name      string          `json:"name"`
	Role      models.UserRole `json:"role"`
	BranchID  *uint           `json:"branch_id"` // nil: all branches
	Method    string          `json:"method"`
	TokenID   string          `json:"-"`
	ExpiresAt time.Time       `json:"expires_at"`
}

const (
	MethodAdminPIN          = "admin_pin"
	MethodManagerPIN        = "manager_pin"
	MethodWarehousePassword = "warehouse_password"
	MethodPassword          = "password"
)

type Claims struct {
	UserID   uint            `json:"user_id"`
	Name     string          `json:"name"`
	Role     models.UserRole `json:"role"`
	BranchID *uint           `json:"branch_id"`
	Method   string          `json:"method"`
	jwt.RegisteredClaims
}

// GenerateToken signs s and returns it with its token id and expiry filled in.
func GenerateToken(secret string, s Session) (string, Session, error) {
	now := time.Now()
	s.TokenID = uuid.NewString()
	s.ExpiresAt = now.Add(TokenTTL)

	claims := &Claims{
		UserID:   s.UserID,
		Name:     s.Name,
		Role:     s.Role,
		BranchID: s.BranchID,
		Method:   s.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.TokenID,
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

func ParseToken(secret, tokenStr string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Session{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Session{}, errors.New("invalid token")
	}
	if !claims.Role.Valid() {
		return Session{}, fmt.Errorf("invalid role %q", claims.Role)
	}

	s := Session{
		UserID:   claims.UserID,
		Name:     claims.Name,
		Role:     claims.Role,
		BranchID: claims.BranchID,
		Method:   claims.Method,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// CanAccessBranch reports whether the session may act on branch id.
func (s Session) CanAccessBranch(id uint) bool {
	return s.BranchID == nil || *s.BranchID == id
}

// ResolveBranch returns the branch a request should act on: a branch-scoped
// session is always forced to its own branch; others get what they asked for (0 = any).
func (s Session) ResolveBranch(requested uint) uint {
	if s.BranchID != nil {
		return *s.BranchID
	}
	return requested
}
