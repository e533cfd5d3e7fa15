package serverutils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const MeasurementIDKey = "measurement_id"

var ErrInvalidToken = errors.New("invalid measurement token")

// MeasurementClaims authorizes access to exactly one measurement.
type MeasurementClaims struct {
	MeasurementID string `json:"measurement_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies per-measurement tokens (HS256).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(measurementID uuid.UUID) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := MeasurementClaims{
		MeasurementID: measurementID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign measurement token: %w", err)
	}
	return signed, exp, nil
}

func (t *TokenIssuer) Parse(tokenStr string) (uuid.UUID, error) {
	var claims MeasurementClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.MeasurementID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// JwtMiddleware accepts the token as a Bearer header or, for websocket
// upgrades, as the token query parameter. When the route has an :id
// parameter it must match the token's measurement.
func JwtMiddleware(tokens *TokenIssuer) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := ctx.Query("token")
		if authHeader := ctx.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = authHeader[7:]
		}
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		id, err := tokens.Parse(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}
		if p := ctx.Params("id"); p != "" && p != id.String() {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Token does not grant access to this measurement"))
		}

		ctx.Locals(MeasurementIDKey, id.String())
		return ctx.Next()
	}
}
