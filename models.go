package main

import (
	"time"

	"github.com/broly1009a/studymate-sub002/matching"
)

// User roles
const (
	roleUser  = "user"
	roleAdmin = "admin"
)

// User is an account together with the attributes used when it seeks partners.
type User struct {
	ID            int        `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"fullName"`
	Role          string     `json:"role"`
	Avatar        string     `json:"avatar,omitempty"`
	University    *string    `json:"university"`
	Major         *string    `json:"major"`
	LearningNeeds []string   `json:"learningNeeds"`
	LearningGoals []string   `json:"learningGoals"`
	StudyHabits   []string   `json:"studyHabits"`
	MBTIType      *string    `json:"mbtiType"`
	BirthDate     *time.Time `json:"birthDate"`
	GPA           *float64   `json:"gpa"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// UserSummary is the public slice of a user embedded in other payloads.
type UserSummary struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Partner is a published study partner card; the candidate side of matching.
type Partner struct {
	ID           int       `json:"id"`
	UserID       int       `json:"userId"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	Bio          string    `json:"bio"`
	University   *string   `json:"university"`
	Major        *string   `json:"major"`
	Subjects     []string  `json:"subjects"`
	StudyStyle   []string  `json:"studyStyle"`
	Goals        []string  `json:"goals"`
	Availability []string  `json:"availability"`
	MBTIType     *string   `json:"mbtiType"`
	Age          *int      `json:"age"`
	Rating       float64   `json:"rating"`
	ReviewCount  int       `json:"reviewCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Seeker converts the user into scorer input, deriving age from the birth date.
func (u *User) Seeker(now time.Time) matching.SeekerProfile {
	s := matching.SeekerProfile{
		University:    u.University,
		Major:         u.Major,
		LearningNeeds: u.LearningNeeds,
		LearningGoals: u.LearningGoals,
		StudyHabits:   u.StudyHabits,
		MBTI:          parseMBTIPtr(u.MBTIType),
	}
	if u.BirthDate != nil {
		age := matching.AgeAt(*u.BirthDate, now)
		s.Age = &age
	}
	return s
}

// Candidate converts the partner card into scorer input.
func (p *Partner) Candidate() matching.CandidateProfile {
	return matching.CandidateProfile{
		ID:         p.ID,
		University: p.University,
		Major:      p.Major,
		MBTI:       parseMBTIPtr(p.MBTIType),
		Age:        p.Age,
		Subjects:   p.Subjects,
		StudyStyle: p.StudyStyle,
		Goals:      p.Goals,
		Rating:     p.Rating,
	}
}

func parseMBTIPtr(s *string) *matching.MBTI {
	if s == nil {
		return nil
	}
	t, ok := matching.ParseMBTI(*s)
	if !ok {
		return nil
	}
	return &t
}
