package auth

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token whose subject is the actor ID.
func IssueToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}

func ParseToken(secret, token string) (*models.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}

	role := models.Role(claims.Role)
	if role == "" {
		role = models.RoleClient
	}
	return &models.Actor{ID: claims.Subject, Role: role}, nil
}

type actorKey struct{}

func WithActor(ctx context.Context, a *models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns nil for anonymous requests.
func ActorFromContext(ctx context.Context) *models.Actor {
	a, _ := ctx.Value(actorKey{}).(*models.Actor)
	return a
}
