package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papercast/internal/model"
	"github.com/xxxsen/papercast/internal/pkg/response"
	"github.com/xxxsen/papercast/internal/service"
)

type PaperAPI interface {
	Chat(ctx context.Context, pdfURL, title, question string) (*model.ChatAnswer, error)
	GenerateQuestions(ctx context.Context, req service.QuestionRequest) (*model.QuestionSet, error)
	CachedQuestions(ctx context.Context, docID string) (*model.QuestionSet, error)
}

type PaperHandler struct {
	papers PaperAPI
}

func NewPaperHandler(papers PaperAPI) *PaperHandler {
	return &PaperHandler{papers: papers}
}

type chatRequest struct {
	PDFURL   string `json:"pdf_url"`
	Title    string `json:"title"`
	Question string `json:"question"`
}

// Chat answers every failure with 400, the message being the cause.
func (h *PaperHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PDFURL == "" || req.Title == "" || req.Question == "" {
		response.Error(c, http.StatusBadRequest, "Missing required fields (pdf_url, title, question)")
		return
	}
	res, err := h.papers.Chat(c.Request.Context(), req.PDFURL, req.Title, req.Question)
	if err != nil {
		handleError(c, err, http.StatusBadRequest)
		return
	}
	response.Success(c, res)
}

type questionRequest struct {
	PDFURL       string `json:"pdf_url"`
	Title        string `json:"title"`
	NumQuestions int    `json:"num_questions"`
	Difficulty   string `json:"difficulty"`
	QuestionType string `json:"question_type"`
	Description  string `json:"description"`
}

func (h *PaperHandler) GenerateQuestions(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PDFURL == "" || req.Title == "" {
		response.Error(c, http.StatusBadRequest, "Missing required fields (pdf_url, title)")
		return
	}
	set, err := h.papers.GenerateQuestions(c.Request.Context(), service.QuestionRequest{
		PDFURL:       req.PDFURL,
		Title:        req.Title,
		NumQuestions: req.NumQuestions,
		Difficulty:   req.Difficulty,
		QuestionType: req.QuestionType,
		Description:  req.Description,
	})
	if err != nil {
		handleError(c, err, http.StatusInternalServerError)
		return
	}
	response.Success(c, set)
}

func (h *PaperHandler) Questions(c *gin.Context) {
	set, err := h.papers.CachedQuestions(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		handleError(c, err, http.StatusInternalServerError)
		return
	}
	response.Success(c, set)
}

func (h *PaperHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
