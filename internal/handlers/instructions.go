package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

type instructionService interface {
	ListCategories(ctx context.Context, domainID uuid.UUID) ([]*models.InstructionCategory, error)
	CreateCategory(ctx context.Context, domainID uuid.UUID, name string) (*models.InstructionCategory, error)
	RenameCategory(ctx context.Context, domainID, id uuid.UUID, name string) (*models.InstructionCategory, error)
	DeleteCategory(ctx context.Context, domainID, id uuid.UUID) error

	List(ctx context.Context, domainID uuid.UUID, categoryID *uuid.UUID, search string) ([]*models.Instruction, error)
	Get(ctx context.Context, domainID, id uuid.UUID) (*models.Instruction, error)
	Create(ctx context.Context, caller middleware.Identity, req models.InstructionRequest) (*models.Instruction, error)
	Update(ctx context.Context, domainID, id uuid.UUID, req models.InstructionRequest) (*models.Instruction, error)
	Delete(ctx context.Context, domainID, id uuid.UUID) error
	UploadDocument(ctx context.Context, caller middleware.Identity, id uuid.UUID, filename string, src io.Reader) (*models.Job, error)
}

type InstructionHandler struct {
	instructions instructionService
}

func NewInstructionHandler(instructions instructionService) *InstructionHandler {
	return &InstructionHandler{instructions: instructions}
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *InstructionHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.instructions.ListCategories(r.Context(), middleware.GetIdentity(r.Context()).DomainID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *InstructionHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.instructions.CreateCategory(r.Context(), middleware.GetIdentity(r.Context()).DomainID, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *InstructionHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "category")
	if !ok {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	c, err := h.instructions.RenameCategory(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id, req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *InstructionHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "category")
	if !ok {
		return
	}
	if err := h.instructions.DeleteCategory(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
}

func (h *InstructionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryFilters(r)
	categoryID := q.uuid("category_id")
	if err := q.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("q"))
	instructions, err := h.instructions.List(r.Context(), middleware.GetIdentity(r.Context()).DomainID, categoryID, search)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instructions": instructions})
}

func (h *InstructionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "instruction")
	if !ok {
		return
	}
	i, err := h.instructions.Get(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (h *InstructionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.InstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	i, err := h.instructions.Create(r.Context(), middleware.GetIdentity(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, i)
}

func (h *InstructionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "instruction")
	if !ok {
		return
	}

	var req models.InstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	i, err := h.instructions.Update(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (h *InstructionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "instruction")
	if !ok {
		return
	}
	if err := h.instructions.Delete(r.Context(), middleware.GetIdentity(r.Context()).DomainID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Instruction deleted"})
}

// multipartOverhead leaves room for the form boundaries around the file.
const multipartOverhead = 1 << 20

func (h *InstructionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "instruction")
	if !ok {
		return
	}

	limit := int64(services.MaxDocumentBytes + multipartOverhead)
	if r.ContentLength > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Document must be 20 MB or smaller", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "Document must be 20 MB or smaller", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	job, err := h.instructions.UploadDocument(r.Context(), middleware.GetIdentity(r.Context()), id, header.Filename, file)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":         job.ID,
		"instruction_id": id,
		"status":         models.InstructionProcessing,
	})
}
