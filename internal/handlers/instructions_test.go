package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
	"inspecta-backend/internal/services"
)

type stubInstructionService struct {
	instructionService
	filename string
	content  []byte
}

func (s *stubInstructionService) UploadDocument(ctx context.Context, caller middleware.Identity, id uuid.UUID, filename string, src io.Reader) (*models.Job, error) {
	s.filename = filename
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	s.content = b
	return &models.Job{ID: uuid.New(), Type: models.JobInstructionExtraction}, nil
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestInstructionHandler_UploadDocument(t *testing.T) {
	svc := &stubInstructionService{}
	h := NewInstructionHandler(svc)

	body, contentType := multipartBody(t, "file", "boiler.txt", []byte("Close the valve"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions/x/document", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.UploadDocument(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.filename != "boiler.txt" || string(svc.content) != "Close the valve" {
		t.Errorf("unexpected upload %q %q", svc.filename, svc.content)
	}
}

func TestInstructionHandler_UploadRejections(t *testing.T) {
	h := NewInstructionHandler(&stubInstructionService{})

	body, contentType := multipartBody(t, "attachment", "boiler.txt", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instructions/x/document", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.UploadDocument(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a file field, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/instructions/x/document", bytes.NewReader(nil))
	req.ContentLength = services.MaxDocumentBytes + 2*multipartOverhead
	req = withURLParam(withIdentity(req, operatorIdentity()), "id", uuid.NewString())
	rr = httptest.NewRecorder()
	h.UploadDocument(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

type stubReportService struct {
	reportService
	path string
	err  error
}

func (s *stubReportService) ExportFile(ctx context.Context, domainID, jobID uuid.UUID) (string, error) {
	return s.path, s.err
}

func TestReportHandler_DownloadExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("check_id,status\n"), 0o644); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}
	h := NewReportHandler(&stubReportService{path: path})
	jobID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/exports/x", nil)
	req = withURLParam(withIdentity(req, operatorIdentity()), "job_id", jobID.String())
	rr := httptest.NewRecorder()
	h.DownloadExport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "check_id,status\n" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="inspections-`+jobID.String()+`.csv"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}

func TestReportHandler_DownloadPendingExport(t *testing.T) {
	h := NewReportHandler(&stubReportService{err: &services.ConflictError{Message: "Export is pending"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/exports/x", nil)
	req = withURLParam(withIdentity(req, operatorIdentity()), "job_id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.DownloadExport(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
