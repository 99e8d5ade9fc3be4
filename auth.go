package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	jwtSecret = []byte(devJWTSecret)
	tokenTTL  = 24 * time.Hour
)

// UserIDKey is the key type for storing user ID in context
type UserIDKey string

const userIDKey UserIDKey = "userID"

var errInvalidToken = errors.New("invalid token")

func issueToken(userID int, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(jwtSecret)
}

// parseToken verifies an HS256 token and returns its user id.
func parseToken(tokenStr string) (int, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidToken
	}
	// encoding/json decodes numbers as float64
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, errInvalidToken
	}
	return int(userID), nil
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func withUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok && id > 0
}

func authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := parseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

// optionalAuth attaches the user id when a valid token is sent and serves
// the request anonymously otherwise.
func optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenStr := bearerToken(r); tokenStr != "" {
			if userID, err := parseToken(tokenStr); err == nil {
				r = r.WithContext(withUserID(r.Context(), userID))
			}
		}
		next(w, r)
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"fullName" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	ID      int    `json:"id"`
}

func registerHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		req.FullName = strings.TrimSpace(req.FullName)
		if err := validate.Struct(req); err != nil {
			writeFieldErrors(w, validationErrors(err))
			return
		}

		hash, err := hashPassword(req.Password)
		if err != nil {
			logger.Error("hashing password", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not register")
			return
		}

		id, err := store.CreateUser(r.Context(), req.Email, hash, req.FullName)
		if errors.Is(err, ErrEmailExists) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		} else if err != nil {
			logger.Error("creating user", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not register")
			return
		}

		token, err := issueToken(id, time.Now())
		if err != nil {
			logger.Error("signing token", zap.Int("user_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not register")
			return
		}
		writeJSON(w, http.StatusCreated, authResponse{Success: true, Token: token, ID: id})
	}
}

func loginHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if err := validate.Struct(req); err != nil {
			writeFieldErrors(w, validationErrors(err))
			return
		}

		id, hash, err := store.UserCredentials(r.Context(), req.Email)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		} else if err != nil {
			logger.Error("loading credentials", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not log in")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := issueToken(id, time.Now())
		if err != nil {
			logger.Error("signing token", zap.Int("user_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not log in")
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, ID: id})
	}
}

// hashPassword is shared with the seeder.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}
