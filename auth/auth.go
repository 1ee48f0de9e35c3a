package auth

import (
	"context"
	"fmt"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
)

// ContextKey is a defined type to be used in context.Context containing the Claims
type ContextKey string

// Context is key used in context.Context containing the Claims
const Context ContextKey = "authContext"

// Auth verifies bearer tokens issued by the identity provider
type Auth struct {
	Options
	jwtKey []byte
}

// Claims is the struct for jwt token
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email"`
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
}

// UserID returns the id claim, falling back to the subject
func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}

// Options provides initialization parameters for Auth
type Options struct {
	Logger        *zap.Logger
	JWTSigningKey string
}

func (o *Options) validate() error {
	if o == nil {
		return fmt.Errorf("nil option is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if len(o.JWTSigningKey) < 16 {
		return fmt.Errorf("jwt signing key must be longer than 16 characters")
	}
	return nil
}

// New will return a new instance of Auth for authentication
func New(option Options) (*Auth, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	return &Auth{
		Options: option,
		jwtKey:  []byte(option.JWTSigningKey),
	}, nil
}

// ClaimsFromContext returns the Claims put into ctx by Middleware
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(Context).(*Claims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}
