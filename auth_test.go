package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// AUTHENTICATION TEST SUITE
// ============================================================================

func TestAuthenticationSuite(t *testing.T) {
	t.Run("Registration", testRegistration)
	t.Run("Login", testLogin)
	t.Run("Middleware", testAuthMiddleware)
	t.Run("Tokens", testTokens)
}

func testRegistration(t *testing.T) {
	store := newMemStore()
	h := newTestRouter(store, nil)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Valid Registration",
			body:           `{"email":"An@Example.com","password":"secret123","fullName":"Nguyễn An"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Duplicate Email Ignores Case",
			body:           `{"email":"an@example.com","password":"another1","fullName":"Someone"}`,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "Invalid Email",
			body:           `{"email":"not-an-email","password":"secret123","fullName":"X"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Short Password",
			body:           `{"email":"b@example.com","password":"123","fullName":"X"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid JSON",
			body:           `{"email":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(h, http.MethodPost, "/auth/register", tt.body, "")
			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, true, resp["success"])
				assert.NotEmpty(t, resp["token"])
				id, err := parseToken(resp["token"].(string))
				require.NoError(t, err)
				assert.Equal(t, float64(id), resp["id"])
			} else {
				assert.Equal(t, false, resp["success"])
				assert.NotEmpty(t, resp["message"])
			}
		})
	}

	t.Run("Validation Errors Use JSON Names", func(t *testing.T) {
		rr := doRequest(h, http.MethodPost, "/auth/register", `{"email":"x","password":"secret123"}`, "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp struct {
			Errors map[string]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.Errors, "email")
		assert.Contains(t, resp.Errors, "fullName")
	})

	t.Run("Wrong Method", func(t *testing.T) {
		rr := doRequest(h, http.MethodGet, "/auth/register", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func testLogin(t *testing.T) {
	store := newMemStore()
	store.addUser(t, User{Email: "login@example.com", FullName: "Login User"}, "correct-horse")
	h := newTestRouter(store, nil)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"Valid Login", `{"email":"Login@example.com ","password":"correct-horse"}`, http.StatusOK},
		{"Wrong Password", `{"email":"login@example.com","password":"wrong"}`, http.StatusUnauthorized},
		{"Unknown Email", `{"email":"nobody@example.com","password":"whatever"}`, http.StatusUnauthorized},
		{"Missing Fields", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(h, http.MethodPost, "/auth/login", tt.body, "")
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
			if tt.expectedStatus == http.StatusOK {
				var resp authResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, 1, resp.ID)
			}
		})
	}
}

func testAuthMiddleware(t *testing.T) {
	var seen int
	protected := authenticate(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("Missing Token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rr := httptest.NewRecorder()
		protected(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mustToken(t, 42))
		rr := httptest.NewRecorder()
		protected(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, 42, seen)
	})

	t.Run("Optional Auth Serves Anonymous Requests", func(t *testing.T) {
		var authed bool
		h := optionalAuth(func(w http.ResponseWriter, r *http.Request) {
			_, authed = userIDFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer broken")
		h(httptest.NewRecorder(), req)
		assert.False(t, authed)

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mustToken(t, 7))
		h(httptest.NewRecorder(), req)
		assert.True(t, authed)
	})
}

func testTokens(t *testing.T) {
	t.Run("Expired Token Is Rejected", func(t *testing.T) {
		token, err := issueToken(5, time.Now().Add(-48*time.Hour))
		require.NoError(t, err)
		_, err = parseToken(token)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("Other Signing Method Is Rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"user_id": 5, "exp": time.Now().Add(time.Hour).Unix()})
		signed, err := token.SignedString(jwtSecret)
		require.NoError(t, err)
		_, err = parseToken(signed)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("Missing User Claim Is Rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
		signed, err := token.SignedString(jwtSecret)
		require.NoError(t, err)
		_, err = parseToken(signed)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("Query Token For Websockets", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws/ai?token="+mustToken(t, 9), nil)
		id, ok := getUserIDFromRequest(req)
		assert.True(t, ok)
		assert.Equal(t, 9, id)

		_, ok = getUserIDFromRequest(httptest.NewRequest(http.MethodGet, "/ws/ai", nil))
		assert.False(t, ok)
	})
}
