package plaid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Benrishty/finsync/internal/core/domain"
)

// maxWebhookAge bounds how old a webhook JWT may be before it is
// rejected as a replay.
const maxWebhookAge = 5 * time.Minute

// WebhookVerifier validates webhook payloads against the provider's
// JWT-based signature scheme. The JWT arrives in the Plaid-Verification
// header, signed with ES256, and carries a SHA-256 digest of the raw
// request body. Verification keys are fetched from the provider by key
// ID and cached.
type WebhookVerifier struct {
	client *Client

	mu   sync.RWMutex
	keys map[string]*ecdsa.PublicKey
}

// NewWebhookVerifier creates a verifier backed by the given API client.
func NewWebhookVerifier(client *Client) *WebhookVerifier {
	return &WebhookVerifier{
		client: client,
		keys:   make(map[string]*ecdsa.PublicKey),
	}
}

// Verify checks the signature JWT against the raw webhook body.
// Returns domain.ErrWebhookSignature when the token is malformed,
// signed with an unknown or wrong key, expired, or when the body digest
// does not match.
func (v *WebhookVerifier) Verify(ctx context.Context, body []byte, signedJWT string) error {
	if signedJWT == "" {
		return fmt.Errorf("missing verification header: %w", domain.ErrWebhookSignature)
	}

	token, err := jwt.Parse(signedJWT,
		func(t *jwt.Token) (any, error) {
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("token has no key ID")
			}
			return v.verificationKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
	)
	if err != nil {
		return fmt.Errorf("verify webhook token: %v: %w", err, domain.ErrWebhookSignature)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type: %w", domain.ErrWebhookSignature)
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return fmt.Errorf("missing iat claim: %w", domain.ErrWebhookSignature)
	}
	if time.Since(issuedAt.Time) > maxWebhookAge {
		return fmt.Errorf("webhook token issued %s ago: %w", time.Since(issuedAt.Time).Round(time.Second), domain.ErrWebhookSignature)
	}

	claimedDigest, _ := claims["request_body_sha256"].(string)
	if claimedDigest == "" {
		return fmt.Errorf("missing request_body_sha256 claim: %w", domain.ErrWebhookSignature)
	}

	digest := sha256.Sum256(body)
	if hex.EncodeToString(digest[:]) != claimedDigest {
		return fmt.Errorf("body digest mismatch: %w", domain.ErrWebhookSignature)
	}

	return nil
}

// verificationKey returns the public key for the given key ID,
// fetching and caching it on first use.
func (v *WebhookVerifier) verificationKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	v.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := v.fetchKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.keys[kid] = key
	v.mu.Unlock()

	return key, nil
}

// jwkKey is the JSON Web Key returned by the verification key endpoint.
type jwkKey struct {
	Alg       string `json:"alg"`
	Crv       string `json:"crv"`
	Kid       string `json:"kid"`
	Kty       string `json:"kty"`
	Use       string `json:"use"`
	X         string `json:"x"`
	Y         string `json:"y"`
	ExpiredAt *int64 `json:"expired_at"`
}

func (v *WebhookVerifier) fetchKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	body := map[string]string{"key_id": kid}

	var resp struct {
		Key jwkKey `json:"key"`
	}
	if err := v.client.post(ctx, "/webhook/verification_key/get", body, &resp); err != nil {
		return nil, fmt.Errorf("fetch verification key %s: %w", kid, err)
	}

	if resp.Key.ExpiredAt != nil {
		return nil, fmt.Errorf("verification key %s is expired", kid)
	}
	if resp.Key.Kty != "EC" || resp.Key.Crv != "P-256" {
		return nil, fmt.Errorf("verification key %s has unsupported type %s/%s", kid, resp.Key.Kty, resp.Key.Crv)
	}

	return jwkToECDSA(&resp.Key)
}

// jwkToECDSA converts a P-256 JWK into an ecdsa.PublicKey.
func jwkToECDSA(key *jwkKey) (*ecdsa.PublicKey, error) {
	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("decode key x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("decode key y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
