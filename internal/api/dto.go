package api

type StartSessionRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type SelectAnswerRequest struct {
	QuestionID int    `json:"question_id" binding:"required,min=1"`
	Answer     string `json:"answer" binding:"required"`
}

type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// QuestionDTO mirrors quiz.QuestionView; field names must stay in sync for copier.
type QuestionDTO struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	UserAnswer    string   `json:"user_answer,omitempty"`
	Answered      bool     `json:"attempted"`
	Visited       bool     `json:"visited"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Correct       bool     `json:"correct,omitempty"`
	Category      string   `json:"category,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
}

// SessionDTO mirrors quiz.View.
type SessionDTO struct {
	SessionID        string        `json:"session_id"`
	State            string        `json:"state"`
	Questions        []QuestionDTO `json:"questions"`
	CurrentIndex     int           `json:"current_index"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Submitted        bool          `json:"submitted"`
	TimedOut         bool          `json:"timed_out"`
	Score            int           `json:"score"`
	Total            int           `json:"total"`
	Visited          []int         `json:"visited"`
	Error            string        `json:"error,omitempty"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
