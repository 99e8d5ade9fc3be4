// Package matching scores how well a study partner candidate fits a seeker.
//
// Every attribute is optional. A missing attribute on either side simply adds
// nothing to the score, so the scorer never fails.
package matching

import (
	"strings"
	"time"
)

// MBTI is one of the 16 four-letter personality type codes.
type MBTI string

var mbtiTypes = map[MBTI]struct{}{
	"INTJ": {}, "INTP": {}, "ENTJ": {}, "ENTP": {},
	"INFJ": {}, "INFP": {}, "ENFJ": {}, "ENFP": {},
	"ISTJ": {}, "ISFJ": {}, "ESTJ": {}, "ESFJ": {},
	"ISTP": {}, "ISFP": {}, "ESTP": {}, "ESFP": {},
}

// ParseMBTI accepts any casing and surrounding whitespace.
func ParseMBTI(s string) (MBTI, bool) {
	t := MBTI(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := mbtiTypes[t]; !ok {
		return "", false
	}
	return t, true
}

// MBTITypes lists the valid codes in a stable order.
func MBTITypes() []MBTI {
	return []MBTI{
		"INTJ", "INTP", "ENTJ", "ENTP",
		"INFJ", "INFP", "ENFJ", "ENFP",
		"ISTJ", "ISFJ", "ESTJ", "ESFJ",
		"ISTP", "ISFP", "ESTP", "ESFP",
	}
}

// SeekerProfile holds the attributes of the user asking for partners.
type SeekerProfile struct {
	University    *string
	Major         *string
	LearningNeeds []string
	LearningGoals []string
	StudyHabits   []string
	MBTI          *MBTI
	Age           *int
}

// CandidateProfile holds the attributes of a prospective partner.
type CandidateProfile struct {
	ID            int
	University    *string
	Major         *string
	LearningNeeds []string
	LearningGoals []string
	StudyHabits   []string
	MBTI          *MBTI
	Age           *int

	Subjects   []string
	StudyStyle []string
	Goals      []string
	Rating     float64
}

// AgeAt returns the number of full years between birth and now.
func AgeAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// normalize folds case and collapses inner whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func present(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	n := normalize(*s)
	return n, n != ""
}

func toSet(lists ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, v := range list {
			if n := normalize(v); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return set
}
