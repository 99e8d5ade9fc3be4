package matching

import "sort"

// Match is a scored candidate.
type Match struct {
	Candidate CandidateProfile
	Score     float64
	Breakdown Breakdown
}

// Rank scores every candidate against seeker, drops those under minScore and
// orders the rest by score desc, rating desc, then id asc.
func Rank(seeker SeekerProfile, candidates []CandidateProfile, minScore float64) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		b := Explain(seeker, c)
		if b.Total < minScore {
			continue
		}
		matches = append(matches, Match{Candidate: c, Score: b.Total, Breakdown: b})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return Less(matches[i], matches[j])
	})
	return matches
}

// Less reports whether a sorts before b.
func Less(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Candidate.Rating != b.Candidate.Rating {
		return a.Candidate.Rating > b.Candidate.Rating
	}
	return a.Candidate.ID < b.Candidate.ID
}
