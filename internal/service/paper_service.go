package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/ai"
	"github.com/xxxsen/papercast/internal/extract"
	"github.com/xxxsen/papercast/internal/model"
	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
	"github.com/xxxsen/papercast/internal/pkg/textutil"
	"github.com/xxxsen/papercast/internal/searchindex"
)

const (
	maxContentLength  = 4000
	maxQuestionSource = 8000
	maxExcerptLength  = 500
	searchK           = 3
	searchTop         = 3
	questionsSuffix   = "-questions"
)

var questionTypeInstructions = map[string]string{
	"conceptual":  "Focus on theoretical concepts and definitions.",
	"technical":   "Focus on methodologies, techniques, and technical details.",
	"application": "Focus on practical applications and implications.",
	"mixed":       "Include a mix of conceptual, technical, and application questions.",
}

type QuestionRequest struct {
	PDFURL       string
	Title        string
	NumQuestions int
	Difficulty   string
	QuestionType string
	Description  string
}

type PaperService struct {
	validator URLValidator
	extractor extract.Extractor
	embedder  ai.IEmbedder
	index     searchindex.Index
	chatter   ai.IChatter
	now       func() time.Time
}

func NewPaperService(validator URLValidator, extractor extract.Extractor, embedder ai.IEmbedder, index searchindex.Index, chatter ai.IChatter) *PaperService {
	return &PaperService{
		validator: validator,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		chatter:   chatter,
		now:       time.Now,
	}
}

// DocID identifies a paper by the pair it was submitted with.
func DocID(pdfURL, title string) string {
	sum := sha256.Sum256([]byte(pdfURL + "-" + title))
	return hex.EncodeToString(sum[:])
}

func (s *PaperService) Chat(ctx context.Context, pdfURL, title, question string) (*model.ChatAnswer, error) {
	if pdfURL == "" || title == "" || question == "" {
		return nil, fmt.Errorf("%w: pdf_url, title and question are required", appErr.ErrInvalid)
	}
	if err := s.validator.Validate(ctx, pdfURL); err != nil {
		return nil, err
	}
	docID := DocID(pdfURL, title)
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	if err := s.ensureIndexed(ctx, docID, pdfURL, title); err != nil {
		logger.Error("paper ingestion failed", zap.Error(err))
		return nil, err
	}
	answer, err := s.answer(ctx, question, title)
	if err != nil {
		logger.Error("answer question failed", zap.Error(err))
		return nil, err
	}
	return &model.ChatAnswer{
		Answer:  answer,
		Sources: []string{title},
		DocID:   docID,
	}, nil
}

func (s *PaperService) ensureIndexed(ctx context.Context, docID, pdfURL, title string) error {
	_, err := s.index.Get(ctx, docID)
	if err == nil {
		return nil
	}
	if !appErr.IsNotFound(err) {
		return fmt.Errorf("%w: lookup document %s: %w", appErr.ErrUpstream, docID, err)
	}
	text, err := s.extractor.Extract(ctx, pdfURL)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: no text content extracted from pdf", appErr.ErrInvalidPDF)
	}
	content := textutil.Truncate(text, maxContentLength)
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed paper: %w", err)
	}
	doc := &model.PaperDocument{
		ID:            docID,
		Type:          model.DocumentTypePaper,
		Title:         title,
		Content:       content,
		ContentVector: vector,
		URL:           pdfURL,
	}
	if err := s.index.Upload(ctx, doc); err != nil {
		return fmt.Errorf("index paper: %w", err)
	}
	logutil.GetLogger(ctx).Info("paper indexed", zap.String("doc_id", docID), zap.Int("content_len", len(content)))
	return nil
}

func (s *PaperService) answer(ctx context.Context, question, title string) (string, error) {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	hits, err := s.index.HybridSearch(ctx, question, vector, searchK, searchTop)
	if err != nil {
		return "", fmt.Errorf("search paper: %w", err)
	}
	excerpts := make([]string, 0, searchTop)
	for i, hit := range hits {
		if i >= searchTop {
			break
		}
		excerpts = append(excerpts, fmt.Sprintf("[Excerpt %d]: %s...", i+1, textutil.Truncate(hit.Content, maxExcerptLength)))
	}
	out, err := s.chatter.Chat(ctx, &ai.ChatRequest{
		System:      fmt.Sprintf("You are a research assistant analyzing: %s\nAnswer concisely and reference the paper content.", title),
		User:        fmt.Sprintf("Question: %s\nPaper Content:\n%s\n\nProvide a brief answer citing relevant passages.", question, strings.Join(excerpts, "\n")),
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", appErr.ErrUpstream, err)
	}
	return out, nil
}

func (s *PaperService) GenerateQuestions(ctx context.Context, req QuestionRequest) (*model.QuestionSet, error) {
	if req.PDFURL == "" || req.Title == "" {
		return nil, fmt.Errorf("%w: pdf_url and title are required", appErr.ErrInvalid)
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if req.QuestionType == "" {
		req.QuestionType = "mixed"
	}
	if err := s.validator.Validate(ctx, req.PDFURL); err != nil {
		return nil, err
	}
	text, err := s.extractor.Extract(ctx, req.PDFURL)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text content extracted from pdf", appErr.ErrInvalidPDF)
	}
	docID := DocID(req.PDFURL, req.Title)
	raw, err := s.chatter.Chat(ctx, &ai.ChatRequest{
		User:        buildQuestionPrompt(req, textutil.Truncate(text, maxQuestionSource)),
		Temperature: 0.7,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate questions: %v", appErr.ErrUpstream, err)
	}
	set, err := parseQuestionSet(raw)
	if err != nil {
		return nil, err
	}
	set.Metadata = model.QuestionMetadata{
		PaperTitle:      req.Title,
		GeneratedAt:     s.now().Format(time.ANSIC),
		Difficulty:      req.Difficulty,
		QuestionType:    req.QuestionType,
		UserDescription: req.Description,
		DocID:           docID,
	}
	s.cacheQuestions(ctx, docID, set)
	return set, nil
}

func parseQuestionSet(raw string) (*model.QuestionSet, error) {
	var probe struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("%w: questions response is not json: %v", appErr.ErrUpstream, err)
	}
	trimmed := strings.TrimSpace(string(probe.Questions))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: invalid question format generated", appErr.ErrUpstream)
	}
	set := &model.QuestionSet{}
	if err := json.Unmarshal([]byte(raw), set); err != nil {
		return nil, fmt.Errorf("%w: invalid question format generated: %v", appErr.ErrUpstream, err)
	}
	return set, nil
}

func buildQuestionPrompt(req QuestionRequest, text string) string {
	instructions, ok := questionTypeInstructions[req.QuestionType]
	if !ok {
		instructions = "Include a mix of question types."
	}
	description := ""
	if req.Description != "" {
		description = "\nAdditional instructions: " + req.Description
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d %s-level multiple choice questions about this research paper titled %q.\n", req.NumQuestions, req.Difficulty, req.Title)
	sb.WriteString(instructions + description + "\n\n")
	sb.WriteString(`For each question, provide:
- A clear, specific question about the paper's content
- 4 plausible multiple choice options (labeled a-d)
- The correct answer (a-d)
- A detailed explanation that includes:
  * Why the correct answer is right (with specific references to the paper)
  * Why each incorrect option is wrong
  * Any relevant context from the paper that helps understand the answer

Paper content (first 8000 characters):
`)
	sb.WriteString(text)
	sb.WriteString(`

Return the questions in JSON format with this exact structure:
{
  "questions": [
    {
      "question": "...",
      "options": {"a": "...", "b": "...", "c": "...", "d": "..."},
      "correct_answer": "a",
      "explanation": {
        "correct": "Explanation of why this is right...",
        "incorrect": {"b": "Why this option is wrong...", "c": "Why this option is wrong...", "d": "Why this option is wrong..."},
        "additional_context": "Any relevant context from the paper..."
      }
    }
  ]
}
`)
	return sb.String()
}

// cacheQuestions is best effort; the caller already has the set.
func (s *PaperService) cacheQuestions(ctx context.Context, docID string, set *model.QuestionSet) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	data, err := json.Marshal(set)
	if err != nil {
		logger.Warn("encode questions for cache failed", zap.Error(err))
		return
	}
	vector, err := s.embedder.Embed(ctx, "Practice questions for document "+docID)
	if err != nil {
		logger.Warn("embed questions for cache failed", zap.Error(err))
		return
	}
	doc := &model.PaperDocument{
		ID:            docID + questionsSuffix,
		Type:          model.DocumentTypeQuestions,
		Content:       string(data),
		ContentVector: vector,
	}
	if err := s.index.Upload(ctx, doc); err != nil {
		logger.Warn("failed to cache questions", zap.Error(err))
	}
}

func (s *PaperService) CachedQuestions(ctx context.Context, docID string) (*model.QuestionSet, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: doc_id is required", appErr.ErrInvalid)
	}
	doc, err := s.index.Get(ctx, docID+questionsSuffix)
	if err != nil {
		return nil, err
	}
	set := &model.QuestionSet{}
	if err := json.Unmarshal([]byte(doc.Content), set); err != nil {
		return nil, fmt.Errorf("%w: cached questions are corrupt: %v", appErr.ErrUpstream, err)
	}
	return set, nil
}

// Summarize answers a free-form question about a paper for callers that only need the text.
func (s *PaperService) Summarize(ctx context.Context, pdfURL, title, question string) (string, error) {
	res, err := s.Chat(ctx, pdfURL, title, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}
