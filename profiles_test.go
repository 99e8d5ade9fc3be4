package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileResponse struct {
	Success bool              `json:"success"`
	Data    User              `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func TestMeProfile(t *testing.T) {
	store := newMemStore()
	id := store.addUser(t, User{Email: "me@example.com", FullName: "Lê Minh", University: strPtr("ĐH Bách Khoa")}, "secret123")
	token := mustToken(t, id)
	h := newTestRouter(store, nil)

	t.Run("Requires Auth", func(t *testing.T) {
		rr := doRequest(h, http.MethodGet, "/me/profile", "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Get", func(t *testing.T) {
		rr := doRequest(h, http.MethodGet, "/me/profile", "", token)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp profileResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "me@example.com", resp.Data.Email)
		require.NotNil(t, resp.Data.University)
		assert.Equal(t, "ĐH Bách Khoa", *resp.Data.University)
	})

	t.Run("Partial Update", func(t *testing.T) {
		body := `{
			"major": " Khoa học máy tính ",
			"learningGoals": ["Ôn thi", "ôn thi", " Làm đồ án "],
			"mbtiType": "intj",
			"birthDate": "2003-05-20",
			"gpa": 8.5
		}`
		rr := doRequest(h, http.MethodPut, "/me/profile", body, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		u, err := store.User(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Lê Minh", u.FullName)
		require.NotNil(t, u.University)
		assert.Equal(t, "ĐH Bách Khoa", *u.University)
		require.NotNil(t, u.Major)
		assert.Equal(t, "Khoa học máy tính", *u.Major)
		assert.Equal(t, []string{"Ôn thi", "Làm đồ án"}, u.LearningGoals)
		require.NotNil(t, u.MBTIType)
		assert.Equal(t, "INTJ", *u.MBTIType)
		require.NotNil(t, u.BirthDate)
		assert.Equal(t, time.Date(2003, 5, 20, 0, 0, 0, 0, time.UTC), *u.BirthDate)
		require.NotNil(t, u.GPA)
		assert.Equal(t, 8.5, *u.GPA)
	})

	t.Run("Empty Values Clear Fields", func(t *testing.T) {
		rr := doRequest(h, http.MethodPut, "/me/profile", `{"university":"","mbtiType":"","learningGoals":[]}`, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		u, err := store.User(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, u.University)
		assert.Nil(t, u.MBTIType)
		assert.Empty(t, u.LearningGoals)
		assert.NotNil(t, u.Major, "fields absent from the body are kept")
	})

	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name  string
			body  string
			field string
		}{
			{"Unknown MBTI", `{"mbtiType":"ABCD"}`, "mbtiType"},
			{"Bad Birth Date", `{"birthDate":"20/05/2003"}`, "birthDate"},
			{"GPA Out Of Range", `{"gpa":11}`, "gpa"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := doRequest(h, http.MethodPut, "/me/profile", tt.body, token)
				require.Equal(t, http.StatusBadRequest, rr.Code)
				var resp profileResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Contains(t, resp.Errors, tt.field)
			})
		}
	})

	t.Run("Deleted Account", func(t *testing.T) {
		rr := doRequest(h, http.MethodGet, "/me/profile", "", mustToken(t, 999))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCleanList(t *testing.T) {
	assert.Equal(t, []string{"Toán", "Lý"}, cleanList([]string{" Toán ", "", "toán", "Lý", "  "}))
	assert.Empty(t, cleanList(nil))
}
