package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcdev12/casino/go/internal/models"
)

// ErrUnauthorized is returned when a connection presents a bad token.
var ErrUnauthorized = errors.New("unauthorized")

// IdentityResolver establishes who is behind a connection, once, at connect.
type IdentityResolver interface {
	Resolve(r *http.Request) (models.Participant, error)
}

// Claims is the token body issued by the account service.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 bearer tokens.
type JWTResolver struct {
	secret         []byte
	allowAnonymous bool
	parser         *jwt.Parser
}

func NewJWTResolver(secret string, allowAnonymous bool) *JWTResolver {
	return &JWTResolver{
		secret:         []byte(secret),
		allowAnonymous: allowAnonymous,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Resolve reads the token from the Authorization header or the token query
// parameter. Without a token the connection is an anonymous spectator, if
// allowed.
func (j *JWTResolver) Resolve(r *http.Request) (models.Participant, error) {
	raw := bearerToken(r)
	if raw == "" {
		if j.allowAnonymous {
			return models.Participant{}, nil
		}
		return models.Participant{}, ErrUnauthorized
	}

	var claims Claims
	_, err := j.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return models.Participant{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return models.Participant{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	name := claims.Username
	if name == "" {
		name = claims.Subject
	}
	return models.Participant{ID: claims.Subject, Name: name}, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// QueryResolver trusts user_id and name query parameters. Development only.
type QueryResolver struct{}

func (QueryResolver) Resolve(r *http.Request) (models.Participant, error) {
	id := r.URL.Query().Get("user_id")
	name := r.URL.Query().Get("name")
	if name == "" {
		name = id
	}
	return models.Participant{ID: id, Name: name}, nil
}
