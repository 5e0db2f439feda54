package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

// MaxDocumentBytes is the largest instruction document accepted.
const MaxDocumentBytes = 20 << 20

type instructionStore interface {
	ListCategories(ctx context.Context, domainID uuid.UUID) ([]*models.InstructionCategory, error)
	GetCategory(ctx context.Context, domainID, id uuid.UUID) (*models.InstructionCategory, error)
	CreateCategory(ctx context.Context, c *models.InstructionCategory) error
	RenameCategory(ctx context.Context, domainID, id uuid.UUID, name string) error
	DeleteCategory(ctx context.Context, domainID, id uuid.UUID) error

	List(ctx context.Context, domainID uuid.UUID, categoryID *uuid.UUID, search string) ([]*models.Instruction, error)
	GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Instruction, error)
	Create(ctx context.Context, i *models.Instruction) error
	Update(ctx context.Context, i *models.Instruction) error
	Delete(ctx context.Context, domainID, id uuid.UUID) error

	AttachDocument(ctx context.Context, domainID, id uuid.UUID, path string) error
	SetExtractedText(ctx context.Context, id uuid.UUID, text string) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	GetForProcessing(ctx context.Context, id uuid.UUID) (*models.Instruction, error)
}

type textExtractor interface {
	Extract(path string) (string, error)
}

type InstructionService struct {
	store       instructionStore
	extractor   textExtractor
	jobs        Enqueuer
	storagePath string
	logger      *zap.Logger
}

func NewInstructionService(store instructionStore, extractor textExtractor, jobs Enqueuer, storagePath string, logger *zap.Logger) *InstructionService {
	return &InstructionService{
		store:       store,
		extractor:   extractor,
		jobs:        jobs,
		storagePath: storagePath,
		logger:      logger,
	}
}

// ──── Categories ────

func (s *InstructionService) ListCategories(ctx context.Context, domainID uuid.UUID) ([]*models.InstructionCategory, error) {
	return s.store.ListCategories(ctx, domainID)
}

func (s *InstructionService) CreateCategory(ctx context.Context, domainID uuid.UUID, name string) (*models.InstructionCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "Name is required"}}
	}
	c := &models.InstructionCategory{DomainID: domainID, Name: name}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, storeError(err, "Category already exists", "Category not found")
	}
	return c, nil
}

func (s *InstructionService) RenameCategory(ctx context.Context, domainID, id uuid.UUID, name string) (*models.InstructionCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "Name is required"}}
	}
	if err := s.store.RenameCategory(ctx, domainID, id, name); err != nil {
		return nil, storeError(err, "Category already exists", "Category not found")
	}
	c, err := s.store.GetCategory(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Category not found")
	}
	return c, nil
}

func (s *InstructionService) DeleteCategory(ctx context.Context, domainID, id uuid.UUID) error {
	return storeError(s.store.DeleteCategory(ctx, domainID, id), "Category is still in use", "Category not found")
}

// ──── Instructions ────

func (s *InstructionService) List(ctx context.Context, domainID uuid.UUID, categoryID *uuid.UUID, search string) ([]*models.Instruction, error) {
	return s.store.List(ctx, domainID, categoryID, strings.TrimSpace(search))
}

func (s *InstructionService) Get(ctx context.Context, domainID, id uuid.UUID) (*models.Instruction, error) {
	i, err := s.store.GetByID(ctx, domainID, id)
	if err != nil {
		return nil, notFound(err, "Instruction not found")
	}
	return i, nil
}

func (s *InstructionService) validate(ctx context.Context, domainID uuid.UUID, req *models.InstructionRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	fieldErrors := make(map[string]string)
	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	}
	if req.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, domainID, *req.CategoryID); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			fieldErrors["category_id"] = "Category not found"
		}
	}
	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

func (s *InstructionService) Create(ctx context.Context, caller middleware.Identity, req models.InstructionRequest) (*models.Instruction, error) {
	if err := s.validate(ctx, caller.DomainID, &req); err != nil {
		return nil, err
	}
	i := &models.Instruction{
		DomainID:   caller.DomainID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Body:       req.Body,
		CreatedBy:  caller.UserID,
	}
	if err := s.store.Create(ctx, i); err != nil {
		return nil, storeError(err, "Instruction already exists", "Category not found")
	}
	return i, nil
}

func (s *InstructionService) Update(ctx context.Context, domainID, id uuid.UUID, req models.InstructionRequest) (*models.Instruction, error) {
	i, err := s.Get(ctx, domainID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, domainID, &req); err != nil {
		return nil, err
	}

	i.CategoryID = req.CategoryID
	i.Title = req.Title
	i.Body = req.Body
	if err := s.store.Update(ctx, i); err != nil {
		return nil, storeError(err, "Instruction already exists", "Instruction not found")
	}
	return i, nil
}

func (s *InstructionService) Delete(ctx context.Context, domainID, id uuid.UUID) error {
	i, err := s.Get(ctx, domainID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, domainID, id); err != nil {
		return notFound(err, "Instruction not found")
	}
	if i.FilePath != nil {
		if err := os.Remove(*i.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove instruction document", zap.String("path", *i.FilePath), zap.Error(err))
		}
	}
	return nil
}

// UploadDocument stores the file next to the instruction and queues text
// extraction.
func (s *InstructionService) UploadDocument(ctx context.Context, caller middleware.Identity, id uuid.UUID, filename string, src io.Reader) (*models.Job, error) {
	if !IsSupportedDocument(filename) {
		return nil, &ValidationError{Fields: map[string]string{"file": "Only .pdf, .docx and .txt documents are supported"}}
	}
	if _, err := s.Get(ctx, caller.DomainID, id); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.storagePath, "instructions", caller.DomainID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	path := filepath.Join(dir, id.String()+strings.ToLower(filepath.Ext(filename)))

	if err := writeLimited(path, src, MaxDocumentBytes); err != nil {
		return nil, err
	}

	if err := s.store.AttachDocument(ctx, caller.DomainID, id, path); err != nil {
		return nil, notFound(err, "Instruction not found")
	}

	job := &models.Job{
		DomainID:    caller.DomainID,
		UserID:      caller.UserID,
		Type:        models.JobInstructionExtraction,
		ReferenceID: id,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		_ = s.store.SetStatus(ctx, id, models.InstructionFailed)
		return nil, err
	}
	return job, nil
}

// writeLimited copies src to path through a temp file and refuses inputs
// longer than limit bytes.
func writeLimited(path string, src io.Reader, limit int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	if n > limit {
		return &ValidationError{Fields: map[string]string{"file": "Document must be 20 MB or smaller"}}
	}
	if n == 0 {
		return &ValidationError{Fields: map[string]string{"file": "Document is empty"}}
	}
	return os.Rename(tmp.Name(), path)
}

// ProcessDocument extracts the text of an instruction's document. It backs
// the instruction-extraction job.
func (s *InstructionService) ProcessDocument(ctx context.Context, instructionID uuid.UUID) error {
	i, err := s.store.GetForProcessing(ctx, instructionID)
	if err != nil {
		return fmt.Errorf("failed to load instruction: %w", err)
	}
	if i.FilePath == nil || *i.FilePath == "" {
		return fmt.Errorf("instruction %s has no document", instructionID)
	}

	text, err := s.extractor.Extract(*i.FilePath)
	if err != nil {
		_ = s.store.SetStatus(ctx, instructionID, models.InstructionFailed)
		return fmt.Errorf("failed to extract document text: %w", err)
	}
	return s.store.SetExtractedText(ctx, instructionID, text)
}
