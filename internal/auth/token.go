package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "foodsched"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// KitchenClaims scope a token to the order stream of one restaurant.
type KitchenClaims struct {
	RestaurantID int64 `json:"rid"`
	jwt.RegisteredClaims
}

// KitchenTokens issues and checks HS256 tokens for kitchen displays, which
// cannot carry the admin session cookie.
type KitchenTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewKitchenTokens(secret []byte, ttl time.Duration) *KitchenTokens {
	return &KitchenTokens{secret: secret, ttl: ttl}
}

func (k *KitchenTokens) Issue(restaurantID int64, subject string, now time.Time) (string, time.Time, error) {
	if len(k.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: signing key not configured", ErrInvalidToken)
	}
	exp := now.Add(k.ttl)
	claims := KitchenClaims{
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate checks signature, issuer and expiry against now.
func (k *KitchenTokens) Validate(token string, now time.Time) (*KitchenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	claims := &KitchenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return k.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.RestaurantID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractToken reads a bearer token from the Authorization header, falling
// back to the query parameter browsers use for websocket URLs.
func ExtractToken(r *http.Request, queryParam string) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get(queryParam))
}
