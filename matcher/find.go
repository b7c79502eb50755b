package matcher

import "github.com/csmith/likesync/model"

// Find returns the index and score of the candidate that best matches target.
// Candidates scoring below minimum are ignored, and ties go to the earlier
// candidate, so callers can pass search results in relevance order. If nothing
// qualifies, Find returns -1 and NoMatch.
func Find(candidates []model.LovedTrack, target model.LovedTrack, minimum Score) (int, Score) {
	best, bestScore := -1, NoMatch
	if minimum < FuzzyMatch {
		minimum = FuzzyMatch
	}

	for i, candidate := range candidates {
		score := Match(candidate, target)
		if score >= minimum && score > bestScore {
			best, bestScore = i, score
		}
	}

	return best, bestScore
}
