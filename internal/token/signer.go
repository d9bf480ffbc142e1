package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload of a bearer token.
type Claims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and parses the bearer form of access tokens.
type Signer struct {
	issuer     string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	parser     *jwt.Parser
}

// NewSigner loads PEM signing material from disk.
func NewSigner(issuer, privateKeyPath, publicKeyPath string) (*Signer, error) {
	priv, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	pub, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, err
	}
	return NewSignerFromKeys(issuer, priv, pub), nil
}

// NewSignerFromKeys constructs a Signer from in-memory keys.
func NewSignerFromKeys(issuer string, priv *rsa.PrivateKey, pub *rsa.PublicKey) *Signer {
	return &Signer{
		issuer:     issuer,
		privateKey: priv,
		publicKey:  pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		),
	}
}

// Sign produces the bearer string for a token row.
func (s *Signer) Sign(t *Token) (string, error) {
	claims := &Claims{
		Scopes: t.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       t.ID.String(),
			Issuer:   s.issuer,
			Subject:  t.UserID.String(),
			IssuedAt: jwt.NewNumericDate(t.CreatedAt),
		},
	}
	if t.Expiry != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*t.Expiry)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the signature and expiry of a bearer string and returns
// the token row id and owning user id embedded in it.
func (s *Signer) Parse(bearer string) (tokenID uuid.UUID, userID uuid.UUID, err error) {
	parsed, err := s.parser.ParseWithClaims(bearer, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	tokenID, err = uuid.Parse(claims.RegisteredClaims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	userID, err = uuid.Parse(claims.RegisteredClaims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalid
	}
	return tokenID, userID, nil
}

// now exposed for expiry claims on fresh rows.
func now() time.Time {
	return time.Now().UTC()
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode private key pem: empty block")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}
	pkcs8Key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err2 != nil {
		return nil, fmt.Errorf("parse private key: %v / %v", err, err2)
	}
	rsaKey, ok := pkcs8Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode public key pem: empty block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}
