package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspecta-backend/internal/models"
)

type InstructionRepo struct {
	pool *pgxpool.Pool
}

func NewInstructionRepo(pool *pgxpool.Pool) *InstructionRepo {
	return &InstructionRepo{pool: pool}
}

// ──── Categories ────

func (r *InstructionRepo) ListCategories(ctx context.Context, domainID uuid.UUID) ([]*models.InstructionCategory, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, domain_id, name, created_at FROM instruction_categories WHERE domain_id = $1 ORDER BY name", domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]*models.InstructionCategory, 0)
	for rows.Next() {
		c := &models.InstructionCategory{}
		if err := rows.Scan(&c.ID, &c.DomainID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *InstructionRepo) GetCategory(ctx context.Context, domainID, id uuid.UUID) (*models.InstructionCategory, error) {
	c := &models.InstructionCategory{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, domain_id, name, created_at FROM instruction_categories WHERE id = $1 AND domain_id = $2", id, domainID,
	).Scan(&c.ID, &c.DomainID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *InstructionRepo) CreateCategory(ctx context.Context, c *models.InstructionCategory) error {
	c.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		"INSERT INTO instruction_categories (id, domain_id, name) VALUES ($1, $2, $3) RETURNING created_at",
		c.ID, c.DomainID, c.Name,
	).Scan(&c.CreatedAt)
}

func (r *InstructionRepo) RenameCategory(ctx context.Context, domainID, id uuid.UUID, name string) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE instruction_categories SET name = $1 WHERE id = $2 AND domain_id = $3", name, id, domainID))
}

func (r *InstructionRepo) DeleteCategory(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx,
		"DELETE FROM instruction_categories WHERE id = $1 AND domain_id = $2", id, domainID))
}

// ──── Instructions ────

const instructionColumns = `id, domain_id, category_id, title, body, file_path, extracted_text, status, created_by, created_at, updated_at`

func scanInstruction(row interface{ Scan(...interface{}) error }) (*models.Instruction, error) {
	i := &models.Instruction{}
	err := row.Scan(
		&i.ID, &i.DomainID, &i.CategoryID, &i.Title, &i.Body, &i.FilePath, &i.ExtractedText,
		&i.Status, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.HasDocument = i.FilePath != nil && *i.FilePath != ""
	return i, nil
}

func (r *InstructionRepo) List(ctx context.Context, domainID uuid.UUID, categoryID *uuid.UUID, search string) ([]*models.Instruction, error) {
	var w whereClause
	w.add("domain_id = ?", domainID)
	if categoryID != nil {
		w.add("category_id = ?", *categoryID)
	}
	if search != "" {
		w.add("(title ILIKE ? OR body ILIKE ? OR COALESCE(extracted_text, '') ILIKE ?)", "%"+search+"%")
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+instructionColumns+" FROM instructions "+w.String()+" ORDER BY title", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instructions := make([]*models.Instruction, 0)
	for rows.Next() {
		i, err := scanInstruction(rows)
		if err != nil {
			return nil, err
		}
		// List responses stay small; full text is served by Get.
		i.ExtractedText = nil
		instructions = append(instructions, i)
	}
	return instructions, rows.Err()
}

func (r *InstructionRepo) GetByID(ctx context.Context, domainID, id uuid.UUID) (*models.Instruction, error) {
	return scanInstruction(r.pool.QueryRow(ctx,
		"SELECT "+instructionColumns+" FROM instructions WHERE id = $1 AND domain_id = $2", id, domainID))
}

func (r *InstructionRepo) Create(ctx context.Context, i *models.Instruction) error {
	i.ID = uuid.New()
	i.Status = models.InstructionReady
	return r.pool.QueryRow(ctx, `
		INSERT INTO instructions (id, domain_id, category_id, title, body, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		i.ID, i.DomainID, i.CategoryID, i.Title, i.Body, i.Status, i.CreatedBy,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
}

func (r *InstructionRepo) Update(ctx context.Context, i *models.Instruction) error {
	return requireAffected(r.pool.Exec(ctx,
		"UPDATE instructions SET category_id = $1, title = $2, body = $3, updated_at = NOW() WHERE id = $4 AND domain_id = $5",
		i.CategoryID, i.Title, i.Body, i.ID, i.DomainID,
	))
}

func (r *InstructionRepo) Delete(ctx context.Context, domainID, id uuid.UUID) error {
	return requireAffected(r.pool.Exec(ctx, "DELETE FROM instructions WHERE id = $1 AND domain_id = $2", id, domainID))
}

func (r *InstructionRepo) AttachDocument(ctx context.Context, domainID, id uuid.UUID, path string) error {
	return requireAffected(r.pool.Exec(ctx, `
		UPDATE instructions SET file_path = $1, extracted_text = NULL, status = 'processing', updated_at = NOW()
		WHERE id = $2 AND domain_id = $3`,
		path, id, domainID,
	))
}

func (r *InstructionRepo) SetExtractedText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE instructions SET extracted_text = $1, status = 'ready', updated_at = NOW() WHERE id = $2", text, id)
	return err
}

func (r *InstructionRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE instructions SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	return err
}

// GetForProcessing loads an instruction without domain scoping; the worker
// only has the reference id from the job.
func (r *InstructionRepo) GetForProcessing(ctx context.Context, id uuid.UUID) (*models.Instruction, error) {
	return scanInstruction(r.pool.QueryRow(ctx, "SELECT "+instructionColumns+" FROM instructions WHERE id = $1", id))
}
