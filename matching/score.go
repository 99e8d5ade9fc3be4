package matching

import "math"

// Component weights. They add up to MaxScore.
const (
	UniversityWeight   = 20.0
	MajorWeight        = 20.0
	RelatedMajorWeight = 10.0
	GoalsWeight        = 20.0
	HabitsWeight       = 15.0
	AgeWeight          = 15.0
	MBTIWeight         = 10.0

	MaxScore = UniversityWeight + MajorWeight + GoalsWeight + HabitsWeight + AgeWeight + MBTIWeight

	// AgeCutoff is the age difference in years at which the age bonus reaches zero.
	AgeCutoff = 10
)

// Reason codes attached to a Breakdown.
const (
	ReasonSameUniversity = "same_university"
	ReasonSameMajor      = "same_major"
	ReasonRelatedMajor   = "related_major"
	ReasonSharedGoals    = "shared_goals"
	ReasonSharedHabits   = "shared_study_habits"
	ReasonSimilarAge     = "similar_age"
	ReasonMBTI           = "mbti_compatible"
)

// Breakdown reports what each attribute contributed to a score.
type Breakdown struct {
	University float64  `json:"university"`
	Major      float64  `json:"major"`
	Goals      float64  `json:"goals"`
	Habits     float64  `json:"habits"`
	Age        float64  `json:"age"`
	MBTI       float64  `json:"mbti"`
	Total      float64  `json:"total"`
	Reasons    []string `json:"reasons"`
}

// Score returns the compatibility of candidate for seeker in [0, MaxScore].
func Score(seeker SeekerProfile, candidate CandidateProfile) float64 {
	return Explain(seeker, candidate).Total
}

// Explain computes the score and reports the per-attribute contributions.
func Explain(seeker SeekerProfile, candidate CandidateProfile) Breakdown {
	var b Breakdown

	if u, ok := present(seeker.University); ok {
		if cu, ok := present(candidate.University); ok && u == cu {
			b.University = UniversityWeight
			b.Reasons = append(b.Reasons, ReasonSameUniversity)
		}
	}

	b.Major = majorScore(seeker.Major, candidate.Major)
	switch b.Major {
	case MajorWeight:
		b.Reasons = append(b.Reasons, ReasonSameMajor)
	case RelatedMajorWeight:
		b.Reasons = append(b.Reasons, ReasonRelatedMajor)
	}

	b.Goals = GoalsWeight * coverage(
		toSet(seeker.LearningNeeds, seeker.LearningGoals),
		toSet(candidate.Goals, candidate.Subjects),
	)
	if b.Goals > 0 {
		b.Reasons = append(b.Reasons, ReasonSharedGoals)
	}

	b.Habits = HabitsWeight * coverage(toSet(seeker.StudyHabits), toSet(candidate.StudyStyle))
	if b.Habits > 0 {
		b.Reasons = append(b.Reasons, ReasonSharedHabits)
	}

	b.Age = ageScore(seeker.Age, candidate.Age)
	if b.Age > 0 {
		b.Reasons = append(b.Reasons, ReasonSimilarAge)
	}

	b.MBTI = mbtiScore(seeker.MBTI, candidate.MBTI)
	if b.MBTI > 0 {
		b.Reasons = append(b.Reasons, ReasonMBTI)
	}

	b.Total = clamp(b.University + b.Major + b.Goals + b.Habits + b.Age + b.MBTI)
	return b
}

func majorScore(seeker, candidate *string) float64 {
	sm, ok := present(seeker)
	if !ok {
		return 0
	}
	cm, ok := present(candidate)
	if !ok {
		return 0
	}
	if sm == cm {
		return MajorWeight
	}
	if g := MajorGroup(sm); g != "" && g == MajorGroup(cm) {
		return RelatedMajorWeight
	}
	return 0
}

// coverage is |want ∩ have| / |want|. Normalising over the seeker's side keeps
// the result monotone in the candidate's set.
func coverage(want, have map[string]struct{}) float64 {
	if len(want) == 0 || len(have) == 0 {
		return 0
	}
	hits := 0
	for w := range want {
		if _, ok := have[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

func ageScore(seeker, candidate *int) float64 {
	if seeker == nil || candidate == nil || *seeker <= 0 || *candidate <= 0 {
		return 0
	}
	diff := math.Abs(float64(*seeker - *candidate))
	if diff >= AgeCutoff {
		return 0
	}
	return AgeWeight * (1 - diff/AgeCutoff)
}

// mbtiScore gives a quarter of the weight for every agreeing dichotomy
// (E/I, S/N, T/F, J/P). Identical types score the full weight.
func mbtiScore(seeker, candidate *MBTI) float64 {
	if seeker == nil || candidate == nil {
		return 0
	}
	s, ok := ParseMBTI(string(*seeker))
	if !ok {
		return 0
	}
	c, ok := ParseMBTI(string(*candidate))
	if !ok {
		return 0
	}
	same := 0
	for i := 0; i < 4; i++ {
		if s[i] == c[i] {
			same++
		}
	}
	return MBTIWeight * float64(same) / 4
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
