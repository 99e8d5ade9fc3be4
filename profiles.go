package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/matching"
)

const birthDateLayout = "2006-01-02"

// profileUpdate is a partial update: nil fields are left untouched, empty
// strings and empty lists clear the stored value.
type profileUpdate struct {
	FullName      *string  `json:"fullName" validate:"omitempty,max=100"`
	Avatar        *string  `json:"avatar" validate:"omitempty,max=500"`
	University    *string  `json:"university" validate:"omitempty,max=200"`
	Major         *string  `json:"major" validate:"omitempty,max=200"`
	LearningNeeds []string `json:"learningNeeds" validate:"omitempty,max=20,dive,required,max=100"`
	LearningGoals []string `json:"learningGoals" validate:"omitempty,max=20,dive,required,max=100"`
	StudyHabits   []string `json:"studyHabits" validate:"omitempty,max=20,dive,required,max=100"`
	MBTIType      *string  `json:"mbtiType" validate:"omitempty,mbti"`
	BirthDate     *string  `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	GPA           *float64 `json:"gpa" validate:"omitempty,gte=0,lte=10"`
}

func (p *profileUpdate) apply(u *User) {
	if p.FullName != nil {
		if name := strings.TrimSpace(*p.FullName); name != "" {
			u.FullName = name
		}
	}
	if p.Avatar != nil {
		u.Avatar = strings.TrimSpace(*p.Avatar)
	}
	if p.University != nil {
		u.University = optionalText(*p.University)
	}
	if p.Major != nil {
		u.Major = optionalText(*p.Major)
	}
	if p.LearningNeeds != nil {
		u.LearningNeeds = cleanList(p.LearningNeeds)
	}
	if p.LearningGoals != nil {
		u.LearningGoals = cleanList(p.LearningGoals)
	}
	if p.StudyHabits != nil {
		u.StudyHabits = cleanList(p.StudyHabits)
	}
	if p.MBTIType != nil {
		u.MBTIType = nil
		if t, ok := matching.ParseMBTI(*p.MBTIType); ok {
			s := string(t)
			u.MBTIType = &s
		}
	}
	if p.BirthDate != nil {
		u.BirthDate = nil
		if t, err := time.Parse(birthDateLayout, strings.TrimSpace(*p.BirthDate)); err == nil {
			u.BirthDate = &t
		}
	}
	if p.GPA != nil {
		g := *p.GPA
		u.GPA = &g
	}
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// cleanList trims entries and drops blanks and case-insensitive duplicates.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func meProfileHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())

		switch r.Method {
		case http.MethodGet:
			u, err := store.User(r.Context(), userID)
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			} else if err != nil {
				logger.Error("loading profile", zap.Int("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not load profile")
				return
			}
			writeData(w, http.StatusOK, u)

		case http.MethodPut:
			var req profileUpdate
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := validate.Struct(req); err != nil {
				writeFieldErrors(w, validationErrors(err))
				return
			}

			u, err := store.User(r.Context(), userID)
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			} else if err != nil {
				logger.Error("loading profile", zap.Int("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not update profile")
				return
			}

			req.apply(u)
			if err := store.UpdateProfile(r.Context(), u); err != nil {
				logger.Error("updating profile", zap.Int("user_id", userID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not update profile")
				return
			}
			writeData(w, http.StatusOK, u)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}
