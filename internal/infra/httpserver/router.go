package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"

	appanalysis "github.com/arkananta/data-analyst-agent/internal/application/analysis"
	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
	"github.com/arkananta/data-analyst-agent/internal/infra/files"
	"github.com/arkananta/data-analyst-agent/internal/middleware"
)

// maxAttachmentBytes caps a single uploaded file.
const maxAttachmentBytes = 32 << 20

// maxMultipartMemory is the in-memory budget for multipart parsing.
const maxMultipartMemory = 32 << 20

type Router struct {
	svc *appanalysis.Service
}

func NewRouter(svc *appanalysis.Service, checkers map[string]middleware.HealthChecker) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	if len(checkers) > 0 {
		mux.Get("/health", middleware.HealthHandler(checkers))
	} else {
		mux.Get("/health", middleware.LivenessHandler)
	}
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleAnalyze))
		rt.Get("/health", r.wrap(r.handleHealth))
		rt.Get("/tasks", r.wrap(r.handleTasks))
		rt.Get("/tasks/{id}", r.wrap(r.handleTask))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			var badReq *badRequestError
			if errors.As(err, &badReq) {
				http.Error(w, badReq.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// POST /api/
// Multipart body: one "questions" part holding the question text, plus any
// number of "files" parts. Responds with the ResponseEnvelope; analysis
// errors ride in the envelope, not the HTTP status.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
		return &badRequestError{msg: "invalid multipart body: " + err.Error()}
	}

	question, err := readQuestion(req)
	if err != nil {
		return err
	}
	if err := middleware.ValidateQuestion(question); err != nil {
		return &badRequestError{msg: err.Error()}
	}

	attachments, err := readAttachments(req)
	if err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	analysisReq := appanalysis.NewRequest(question, attachments, r.svc.Clock.Now())
	envelope := r.svc.Analyze(req.Context(), analysisReq)
	if envelope.Status == domain.StatusError {
		middleware.IncrementAnalysesFailed()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(envelope)
}

func readQuestion(req *http.Request) (string, error) {
	file, _, err := req.FormFile("questions")
	if err != nil {
		return "", &badRequestError{msg: "questions part is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes))
	if err != nil {
		return "", fmt.Errorf("read questions: %w", err)
	}
	return string(data), nil
}

func readAttachments(req *http.Request) ([]domain.AttachmentRef, error) {
	if req.MultipartForm == nil {
		return nil, nil
	}

	parts := req.MultipartForm.File["files"]
	attachments := make([]domain.AttachmentRef, 0, len(parts))
	taken := make(map[string]bool, len(parts))

	for _, part := range parts {
		if err := middleware.ValidateFilename(part.Filename); err != nil {
			return nil, &badRequestError{msg: err.Error()}
		}
		data, err := readPart(part)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, domain.AttachmentRef{
			Identifier: files.UniqueIdentifier(part.Filename, taken),
			Filename:   part.Filename,
			Kind:       files.DetectKind(part.Filename),
			Data:       data,
		})
	}
	return attachments, nil
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	if part.Size > maxAttachmentBytes {
		return nil, &badRequestError{msg: fmt.Sprintf("file %s exceeds the %d byte limit", part.Filename, maxAttachmentBytes)}
	}
	f, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", part.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxAttachmentBytes))
}

// GET /api/health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "data-analyst-agent",
	})
}

// GET /api/tasks?limit=20
func (r *Router) handleTasks(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /api/tasks/{id}
func (r *Router) handleTask(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	rec, err := r.svc.Get(req.Context(), domain.TaskID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}
