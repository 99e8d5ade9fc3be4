package matching

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }
func num(n int) *int        { return &n }
func mbti(s string) *MBTI {
	t := MBTI(s)
	return &t
}

func fullSeeker() SeekerProfile {
	return SeekerProfile{
		University:    str("ĐH Bách Khoa"),
		Major:         str("CS"),
		LearningNeeds: []string{"exam prep"},
		StudyHabits:   []string{"morning", "library"},
		MBTI:          mbti("INTJ"),
		Age:           num(21),
	}
}

func TestScoreSuite(t *testing.T) {
	t.Run("Perfect Match Scores Max", func(t *testing.T) {
		c := CandidateProfile{
			University: str("  đh bách   khoa "),
			Major:      str("cs"),
			Goals:      []string{"Exam Prep"},
			StudyStyle: []string{"library", "morning", "online"},
			MBTI:       mbti("intj"),
			Age:        num(21),
		}
		b := Explain(fullSeeker(), c)
		assert.Equal(t, UniversityWeight, b.University)
		assert.Equal(t, MajorWeight, b.Major)
		assert.Equal(t, GoalsWeight, b.Goals)
		assert.Equal(t, HabitsWeight, b.Habits)
		assert.Equal(t, AgeWeight, b.Age)
		assert.Equal(t, MBTIWeight, b.MBTI)
		assert.Equal(t, MaxScore, b.Total)
		assert.Equal(t, 100.0, Score(fullSeeker(), c))
		assert.ElementsMatch(t, []string{
			ReasonSameUniversity, ReasonSameMajor, ReasonSharedGoals,
			ReasonSharedHabits, ReasonSimilarAge, ReasonMBTI,
		}, b.Reasons)
	})

	t.Run("No Overlap Scores Zero", func(t *testing.T) {
		c := CandidateProfile{
			University: str("ĐH Ngoại Thương"),
			Major:      str("Marketing"),
			Goals:      []string{"scholarship"},
			StudyStyle: []string{"late night"},
			Age:        num(40),
		}
		b := Explain(fullSeeker(), c)
		assert.Zero(t, b.Total)
		assert.Empty(t, b.Reasons)
	})

	t.Run("Related Major Gets Partial Credit", func(t *testing.T) {
		s := SeekerProfile{Major: str("CS")}
		c := CandidateProfile{Major: str("Software Engineering")}
		assert.Equal(t, RelatedMajorWeight, Score(s, c))

		c.Major = str("Kế Toán")
		assert.Zero(t, Score(s, c))
	})

	t.Run("Unknown Majors Only Match Exactly", func(t *testing.T) {
		s := SeekerProfile{Major: str("Underwater Basket Weaving")}
		c := CandidateProfile{Major: str("Astrology")}
		assert.Zero(t, Score(s, c))
	})

	t.Run("Goal Coverage Is Proportional", func(t *testing.T) {
		s := SeekerProfile{
			LearningNeeds: []string{"exam prep"},
			LearningGoals: []string{"homework help"},
		}
		c := CandidateProfile{Goals: []string{"exam prep", "scholarship"}}
		assert.InDelta(t, GoalsWeight/2, Score(s, c), 1e-9)
	})

	t.Run("Subjects Count Towards Goals", func(t *testing.T) {
		s := SeekerProfile{LearningGoals: []string{"Toán Cao Cấp"}}
		c := CandidateProfile{Subjects: []string{"toán cao cấp"}}
		assert.Equal(t, GoalsWeight, Score(s, c))
	})

	t.Run("MBTI Letter Agreement", func(t *testing.T) {
		s := SeekerProfile{MBTI: mbti("INTJ")}
		assert.Equal(t, 5.0, Score(s, CandidateProfile{MBTI: mbti("INFP")}))
		assert.Equal(t, 0.0, Score(s, CandidateProfile{MBTI: mbti("ESFP")}))
		assert.Equal(t, 0.0, Score(s, CandidateProfile{MBTI: mbti("XXXX")}))
	})

	t.Run("Age Decay", func(t *testing.T) {
		s := SeekerProfile{Age: num(25)}
		same := Score(s, CandidateProfile{Age: num(25)})
		five := Score(s, CandidateProfile{Age: num(30)})
		far := Score(s, CandidateProfile{Age: num(45)})

		assert.Equal(t, AgeWeight, same)
		assert.InDelta(t, AgeWeight/2, five, 1e-9)
		assert.Zero(t, far)
		assert.Greater(t, same, far)
		assert.Zero(t, Score(s, CandidateProfile{Age: num(35)}), "cutoff is exclusive")
	})
}

func TestScoreProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	t.Run("Never Negative Or Above Max", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			s, c := randomSeeker(r), randomCandidate(r, i)
			got := Score(s, c)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, MaxScore)
		}
	})

	t.Run("Superset Subjects Never Lower The Score", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			s, c1 := randomSeeker(r), randomCandidate(r, i)
			c2 := c1
			c2.Subjects = append(append([]string{}, c1.Subjects...), pick(r, Subjects(), 3)...)
			require.GreaterOrEqual(t, Score(s, c2), Score(s, c1))
		}
	})

	t.Run("Missing Fields Are Tolerated", func(t *testing.T) {
		c := randomCandidate(r, 1)
		assert.NotPanics(t, func() { Score(SeekerProfile{}, c) })
		assert.NotPanics(t, func() { Score(randomSeeker(r), CandidateProfile{}) })
		assert.Zero(t, Score(SeekerProfile{}, c))
		assert.Zero(t, Score(fullSeeker(), CandidateProfile{}))

		empty := SeekerProfile{University: str("   "), Major: str(""), Age: num(0)}
		assert.Zero(t, Score(empty, CandidateProfile{University: str(""), Age: num(0)}))
	})

	t.Run("Deterministic", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			s, c := randomSeeker(r), randomCandidate(r, i)
			require.Equal(t, Score(s, c), Score(s, c))
			require.Equal(t, Explain(s, c), Explain(s, c))
		}
	})
}

func TestParseMBTI(t *testing.T) {
	for _, code := range MBTITypes() {
		got, ok := ParseMBTI(string(code))
		assert.True(t, ok, code)
		assert.Equal(t, code, got)
	}
	got, ok := ParseMBTI(" enfp ")
	assert.True(t, ok)
	assert.Equal(t, MBTI("ENFP"), got)

	for _, bad := range []string{"", "INT", "ABCD", "INTJX"} {
		_, ok := ParseMBTI(bad)
		assert.False(t, ok, bad)
	}
	assert.Len(t, MBTITypes(), 16)
}

func TestAgeAt(t *testing.T) {
	birth := time.Date(2003, time.June, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 21, AgeAt(birth, time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 22, AgeAt(birth, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, AgeAt(birth, time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestVocabularyCopies(t *testing.T) {
	u := Universities()
	u[0] = "changed"
	assert.NotEqual(t, "changed", Universities()[0])
	assert.Equal(t, "computing", MajorGroup("khoa học  máy tính"))
	assert.Empty(t, MajorGroup("nope"))
	assert.Contains(t, Majors(), "CS")
}

func randomSeeker(r *rand.Rand) SeekerProfile {
	s := SeekerProfile{
		LearningNeeds: pick(r, LearningNeeds(), 2),
		LearningGoals: pick(r, LearningGoals(), 2),
		StudyHabits:   pick(r, StudyHabits(), 3),
	}
	if r.Intn(2) == 0 {
		s.University = str(Universities()[r.Intn(len(universities))])
	}
	if r.Intn(2) == 0 {
		s.Major = str(Majors()[r.Intn(len(Majors()))])
	}
	if r.Intn(2) == 0 {
		s.Age = num(17 + r.Intn(30))
	}
	if r.Intn(2) == 0 {
		t := MBTITypes()[r.Intn(16)]
		s.MBTI = &t
	}
	return s
}

func randomCandidate(r *rand.Rand, id int) CandidateProfile {
	c := CandidateProfile{
		ID:         id,
		Subjects:   pick(r, Subjects(), 3),
		StudyStyle: pick(r, StudyHabits(), 3),
		Goals:      pick(r, append(LearningNeeds(), LearningGoals()...), 3),
		Rating:     float64(r.Intn(50)) / 10,
	}
	if r.Intn(2) == 0 {
		c.University = str(Universities()[r.Intn(len(universities))])
	}
	if r.Intn(2) == 0 {
		c.Major = str(Majors()[r.Intn(len(Majors()))])
	}
	if r.Intn(2) == 0 {
		c.Age = num(17 + r.Intn(30))
	}
	if r.Intn(2) == 0 {
		t := MBTITypes()[r.Intn(16)]
		c.MBTI = &t
	}
	return c
}

func pick(r *rand.Rand, from []string, max int) []string {
	n := r.Intn(max + 1)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, from[r.Intn(len(from))])
	}
	return out
}
