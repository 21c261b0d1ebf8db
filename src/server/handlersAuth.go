package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	app "pondserv/src/app"
	auth "pondserv/src/auth"
	cfg "pondserv/src/configuration"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// contextUserKey is where the bearer middleware puts the resolved user id.
const contextUserKey = "userID"

// UserStore is the slice of the metadata store the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, user *app.User) error
	UserByEmail(ctx context.Context, email string) (*app.User, error)
	Users(ctx context.Context) ([]app.User, error)
}

type AuthHandler struct {
	dataStore UserStore
	secret    []byte
	tokenTTL  time.Duration
}

func NewAuthHandler(dataStore UserStore, config *cfg.Properties) *AuthHandler {
	return &AuthHandler{
		dataStore: dataStore,
		secret:    []byte(config.Auth.Secret),
		tokenTTL:  config.Auth.TokenTTL,
	}
}

func (a *AuthHandler) Signup(c *gin.Context) {
	var body SignupBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, email and password are required"})
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}
	user := &app.User{
		ID:           uuid.NewString(),
		Name:         body.Name,
		Email:        strings.ToLower(body.Email),
		PasswordHash: hash,
	}
	if err := a.dataStore.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, app.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
			return
		}
		log.Printf("can not create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

func (a *AuthHandler) Login(c *gin.Context) {
	var body LoginBody
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}

	user, err := a.dataStore.UserByEmail(c.Request.Context(), body.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User does not exist"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, a.secret, a.tokenTTL)
	if err != nil {
		log.Printf("can not sign token for %s: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User logged in successfully", "token": token})
}

func (a *AuthHandler) GetUsers(c *gin.Context) {
	users, err := a.dataStore.Users(c.Request.Context())
	if err != nil {
		log.Printf("can not list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Users fetched successfully", "users": users})
}

// RequireUser validates the bearer token and injects the resolved requester
// id into the request context for every handler behind it.
func (a *AuthHandler) RequireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token provided"})
		return
	}
	token := strings.TrimPrefix(header, "Bearer ")

	claims, err := auth.ParseToken(token, a.secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set(contextUserKey, claims.UserID)
	c.Next()
}

func requesterID(c *gin.Context) string {
	return c.GetString(contextUserKey)
}
