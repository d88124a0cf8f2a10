package domain

// MasteryLearningRate is the EMA step size for mastery updates.
const MasteryLearningRate = 0.2

// defaultMastery is assumed for a concept the session has never seen.
const defaultMastery = 0.5

// NextMastery applies one evaluation to mastery m. Incorrect answers
// pull the estimate down at half the rate correct ones push it up.
func NextMastery(m float64, isCorrect bool, confidence float64) float64 {
	if isCorrect {
		m += (1 - m) * MasteryLearningRate * confidence
	} else {
		m -= m * MasteryLearningRate * confidence * 0.5
	}
	return clamp01(m)
}

// UpdateMastery applies an evaluation to concept and returns the new score.
func (s *Session) UpdateMastery(concept string, isCorrect bool, confidence float64) float64 {
	if s.Mastery == nil {
		s.Mastery = make(map[string]float64)
	}
	current, ok := s.Mastery[concept]
	if !ok {
		current = defaultMastery
	}
	next := NextMastery(current, isCorrect, confidence)
	s.Mastery[concept] = next
	return next
}

// MasteryLevel labels a mastery score for display.
func MasteryLevel(score float64) string {
	switch {
	case score >= 0.9:
		return "mastered"
	case score >= 0.7:
		return "strong"
	case score >= 0.5:
		return "adequate"
	case score >= 0.3:
		return "developing"
	default:
		return "needs_work"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
