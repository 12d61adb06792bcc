package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mroshb/colony_engine/internal/models"
)

const MinSigningKeyLength = 32

// EventClaims carries one game event as a signed token.
type EventClaims struct {
	EventID    string `json:"event_id"`
	VillageID  uint   `json:"village_id"`
	EntityType string `json:"entity_type"`
	EntityID   uint   `json:"entity_id"`
	Transition string `json:"transition"`
	jwt.RegisteredClaims
}

// EventSigner signs outbound event payloads with HS256 so receivers can verify
// they came from this engine.
type EventSigner struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewEventSigner(key, issuer string, ttl time.Duration) (*EventSigner, error) {
	if len(key) < MinSigningKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d characters", MinSigningKeyLength)
	}
	return &EventSigner{key: []byte(key), issuer: issuer, ttl: ttl}, nil
}

func (s *EventSigner) Sign(e models.GameEvent) (string, error) {
	claims := &EventClaims{
		EventID:    e.EventID,
		VillageID:  e.VillageID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Transition: e.Transition,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       e.EventID,
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(e.OccurredAt),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(e.OccurredAt.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

// Verify parses a token produced by Sign.
func (s *EventSigner) Verify(tokenString string) (*EventClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &EventClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*EventClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
