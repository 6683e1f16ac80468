package quiz

// QuestionView is the presentation copy of a question. CorrectAnswer and
// Correct stay empty until the session is submitted.
type QuestionView struct {
	ID            int
	Prompt        string
	Options       []string
	UserAnswer    string
	Answered      bool
	Visited       bool
	CorrectAnswer string
	Correct       bool
	Category      string
	Difficulty    string
}

type View struct {
	SessionID        string
	State            State
	Questions        []QuestionView
	CurrentIndex     int
	RemainingSeconds int
	Submitted        bool
	TimedOut         bool
	Score            int
	Total            int
	Visited          []int
	Error            string
}

// Snapshot returns a consistent copy of everything a presentation layer reads.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	submitted := s.state == StateSubmitted
	v := View{
		SessionID:        s.id,
		State:            s.state,
		Questions:        make([]QuestionView, 0, len(s.questions)),
		CurrentIndex:     s.current,
		RemainingSeconds: s.remaining,
		Submitted:        submitted,
		Total:            len(s.questions),
		Visited:          append([]int(nil), s.visited...),
	}
	if submitted {
		v.Score = s.result.Score
		v.TimedOut = s.result.TimedOut
	}
	if s.loadErr != nil {
		v.Error = s.loadErr.Error()
	}

	for _, q := range s.questions {
		_, visited := s.visitedSet[q.ID]
		qv := QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			UserAnswer: q.UserAnswer,
			Answered:   q.Answered(),
			Visited:    visited,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		}
		if submitted {
			qv.CorrectAnswer = q.CorrectAnswer
			qv.Correct = q.IsCorrect()
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

// Current returns the view of the question under the cursor.
func (v View) Current() (QuestionView, bool) {
	if v.CurrentIndex < 0 || v.CurrentIndex >= len(v.Questions) {
		return QuestionView{}, false
	}
	return v.Questions[v.CurrentIndex], true
}
