package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer подписывает cookie с идентификатором клиента (claim "cid").
// Это только идентификатор браузера, а не подтверждение личности.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// NewClientID выдает новый идентификатор и подписанный токен для него
func (i *Issuer) NewClientID() (string, string, error) {
	id := uuid.New().String()
	token, err := i.Sign(id)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

func (i *Issuer) Sign(clientID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cid": clientID,
		"iat": i.now().Unix(),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign client token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid client token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid client token claims")
	}
	cid, ok := claims["cid"].(string)
	if !ok || cid == "" {
		return "", errors.New("client token has no cid")
	}
	return cid, nil
}
