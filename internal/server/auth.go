package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/config"
)

// JWTValidator authenticates game hosts
type JWTValidator struct {
	config    *config.Config
	publicKey *ecdsa.PublicKey
	keyMu     sync.RWMutex
	redis     *redis.Client
	client    *http.Client
	ctx       context.Context
	log       zerolog.Logger
}

// Claims represents a host token issued by the auth server
type Claims struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`
	jwt.RegisteredClaims
}

// HostIdentity is an authenticated game host
type HostIdentity struct {
	ID   string
	Name string
}

// NewJWTValidator fetches the signing key and keeps it fresh until ctx ends.
// A nil redis client disables the revocation blacklist.
func NewJWTValidator(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) (*JWTValidator, error) {
	validator := &JWTValidator{
		config: cfg,
		redis:  redisClient,
		client: &http.Client{Timeout: 10 * time.Second},
		ctx:    ctx,
		log:    log.With().Str("component", "auth").Logger(),
	}

	if err := validator.RefreshPublicKey(); err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}

	go validator.periodicKeyRefresh()

	validator.log.Info().Str("issuer", cfg.JWT.Issuer).Msg("JWT validator initialized")
	return validator, nil
}

// RefreshPublicKey fetches the ECDSA public key from the auth server
func (v *JWTValidator) RefreshPublicKey() error {
	req, err := http.NewRequestWithContext(v.ctx, http.MethodGet, v.config.JWT.PublicKeyURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build public key request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public key endpoint returned status %d", resp.StatusCode)
	}

	keyData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	key, err := parseECDSAPublicKey(keyData)
	if err != nil {
		return err
	}

	v.keyMu.Lock()
	v.publicKey = key
	v.keyMu.Unlock()

	v.log.Debug().Msg("public key refreshed")
	return nil
}

func parseECDSAPublicKey(keyData []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not ECDSA")
	}
	return ecdsaKey, nil
}

// periodicKeyRefresh refreshes the public key until the validator's
// context is cancelled
func (v *JWTValidator) periodicKeyRefresh() {
	ticker := time.NewTicker(time.Duration(v.config.JWT.PublicKeyRefreshHrs) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := v.RefreshPublicKey(); err != nil {
				v.log.Error().Err(err).Msg("failed to refresh public key")
			}
		case <-v.ctx.Done():
			return
		}
	}
}

// ValidateToken validates a host token and returns the host identity
func (v *JWTValidator) ValidateToken(tokenString string) (*HostIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		v.keyMu.RLock()
		defer v.keyMu.RUnlock()
		return v.publicKey, nil
	}, jwt.WithIssuer(v.config.JWT.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.HostID == "" {
		return nil, errors.New("token has no host_id")
	}

	if v.redis != nil {
		blacklistKey := v.config.Redis.BlacklistPrefix + claims.HostID

		revoked, err := v.redis.Exists(v.ctx, blacklistKey).Result()
		if err != nil {
			// Don't lock hosts out while Redis is down.
			v.log.Warn().Err(err).Msg("failed to check blacklist")
		} else if revoked > 0 {
			return nil, errors.New("host is revoked")
		}
	}

	return &HostIdentity{ID: claims.HostID, Name: claims.HostName}, nil
}

// extractTokenFromHeader extracts the host token from the upgrade request
func extractTokenFromHeader(r *http.Request) string {
	// Sec-WebSocket-Protocol: "access_token, <token>"
	if protocols := r.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
		parts := parseProtocols(protocols)
		if len(parts) == 2 && parts[0] == "access_token" {
			return parts[1]
		}
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && len(auth) > len("Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return r.URL.Query().Get("token")
}

// parseProtocols splits the Sec-WebSocket-Protocol header
func parseProtocols(protocols string) []string {
	var result []string
	for _, part := range strings.Split(protocols, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
