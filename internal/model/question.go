package model

type QuestionOptions struct {
	A string `json:"a"`
	B string `json:"b"`
	C string `json:"c"`
	D string `json:"d"`
}

type QuestionExplanation struct {
	Correct           string            `json:"correct"`
	Incorrect         map[string]string `json:"incorrect"`
	AdditionalContext string            `json:"additional_context"`
}

type Question struct {
	Question      string              `json:"question"`
	Options       QuestionOptions     `json:"options"`
	CorrectAnswer string              `json:"correct_answer"`
	Explanation   QuestionExplanation `json:"explanation"`
}

type QuestionMetadata struct {
	PaperTitle      string `json:"paper_title"`
	GeneratedAt     string `json:"generated_at"`
	Difficulty      string `json:"difficulty"`
	QuestionType    string `json:"question_type"`
	UserDescription string `json:"user_description"`
	DocID           string `json:"doc_id,omitempty"`
}

type QuestionSet struct {
	Questions []Question       `json:"questions"`
	Metadata  QuestionMetadata `json:"metadata"`
}
