package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Token string

const (
	TokenTypeAccess Token = "blogpipe-access"
)

// MakeJWT signs an access token for subject, normally an author id.
func MakeJWT(
	subject string,
	tokenSecret string,
	expiresIn time.Duration,
) (string, error) {
	if tokenSecret == "" {
		return "", errors.New("signing key is empty")
	}
	signingKey := []byte(tokenSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    string(TokenTypeAccess),
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(expiresIn)),
		Subject:   subject,
	})
	return token.SignedString(signingKey)
}

// ValidateJWT checks signature, expiry and issuer and returns the subject.
func ValidateJWT(tokenString, tokenSecret string) (string, error) {
	claimsStruct := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claimsStruct,
		func(token *jwt.Token) (interface{}, error) { return []byte(tokenSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}

	issuer, err := token.Claims.GetIssuer()
	if err != nil {
		return "", err
	}
	if issuer != string(TokenTypeAccess) {
		return "", errors.New("invalid issuer")
	}
	if subject == "" {
		return "", errors.New("missing subject")
	}
	return subject, nil
}

func GetBearerToken(headers http.Header) (string, error) {
	authorization := headers.Get("Authorization")
	if authorization == "" {
		return "", errors.New("missing authorization header")
	}

	if !strings.HasPrefix(authorization, "Bearer ") {
		return "", errors.New("expected Bearer authorization scheme")
	}

	// Trim off the prefix and whitespace
	tokenString := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	if tokenString == "" {
		return "", errors.New("missing bearer token")
	}
	return tokenString, nil
}
