package auth

import (
	"crypto/subtle"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pilcrowbooks/pilcrow/pkg/errcodes"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12
	// TokenExpiry is how long JWT tokens are valid.
	TokenExpiry = 7 * 24 * time.Hour // 7 days
)

// Authorizer decides whether a username and password may make changes to the
// catalog.
type Authorizer interface {
	Authorize(username, password string) bool
}

// JWTClaims represents the claims in a JWT token.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service checks the single configured credential and issues session
// tokens. Only a bcrypt hash of the password is kept in memory.
type Service struct {
	username     string
	passwordHash []byte
	jwtSecret    []byte
}

// NewService creates a new auth service for the given credential.
func NewService(username, password, jwtSecret string) (*Service, error) {
	if username == "" || password == "" {
		return nil, errors.New("auth username and password must be set")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Service{
		username:     username,
		passwordHash: []byte(hash),
		jwtSecret:    []byte(jwtSecret),
	}, nil
}

// NewServiceFromConfig creates a service from the auth_* and jwt_secret
// settings.
func NewServiceFromConfig(cfg *config.Config) (*Service, error) {
	return NewService(cfg.AuthUsername, cfg.AuthPassword, cfg.JWTSecret)
}

// Authorize reports whether the pair matches the configured credential.
func (s *Service) Authorize(username, password string) bool {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	return usernameOK && passwordOK
}

// Authenticate is Authorize returning a 401 error on mismatch.
func (s *Service) Authenticate(username, password string) error {
	if !s.Authorize(username, password) {
		return errcodes.Unauthorized("Invalid username or password")
	}
	return nil
}

// GenerateToken creates a new JWT token for the user.
func (s *Service) GenerateToken(username string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims. Tokens issued
// for a username other than the configured one are rejected.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Username != s.username {
		return nil, errors.New("token issued for a different user")
	}

	return claims, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
