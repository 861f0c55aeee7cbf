package models

import "github.com/golang-jwt/jwt/v5"

// Claims - поля access-токена внешнего провайдера идентичности.
// Идентификатор пользователя приходит в стандартном поле "sub".
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
