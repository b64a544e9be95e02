package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims grounded on pkg/platform/auth/engine.go's Claims type, trimmed
// to the one role this surface needs: there is no per-resource
// permission model here, just "holds a valid token or doesn't."
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errBadCredentials = errors.New("adminapi: invalid admin credentials")

// authEngine issues and verifies the single admin bearer token. It is a
// deliberately smaller cousin of auth.AuthEngine: one credential, one
// role, no user store, because the admin surface fronts one node, not a
// multi-tenant platform.
type authEngine struct {
	secret   []byte
	password string
}

func newAuthEngine(secret []byte, adminPassword string) *authEngine {
	return &authEngine{secret: secret, password: adminPassword}
}

func (a *authEngine) login(password string) (string, error) {
	if password == "" || password != a.password {
		return "", errBadCredentials
	}
	claims := &claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			Issuer:    "redisnode-adminapi",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *authEngine) verify(tokenString string) (*claims, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("adminapi: invalid token")
	}
	return c, nil
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := s.auth.login(req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// requireAuth is gin middleware checking a Bearer token against the
// admin credential, guarding the two routes that can force a reconnect:
// POST /admin/reconnect and POST /graphql.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == "" || tokenString == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if _, err := s.auth.verify(tokenString); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
