package model

const (
	DocumentTypePaper     = "paper"
	DocumentTypeQuestions = "practice_questions"
)

type PaperDocument struct {
	ID            string    `json:"id" db:"id"`
	Type          string    `json:"type,omitempty" db:"doc_type"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	ContentVector []float32 `json:"content_vector" db:"-"`
	URL           string    `json:"url" db:"url"`
}

type SearchHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	DocID   string   `json:"doc_id"`
}
