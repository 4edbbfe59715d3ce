package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumen-backend/internal/models"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, reader_id, title, description, kind, price_cents, status, file_key,
	file_name, file_size, content_type, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.ReaderID, &p.Title, &p.Description, &p.Kind, &p.PriceCents, &p.Status,
		&p.FileKey, &p.FileName, &p.FileSize, &p.ContentType, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	p.Prepare()
	return r.pool.QueryRow(ctx, `
		INSERT INTO products (id, reader_id, title, description, kind, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.ReaderID, p.Title, p.Description, string(p.Kind), p.PriceCents, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.Prepare()
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET title = $2, description = $3, kind = $4, price_cents = $5,
			status = $6, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Title, p.Description, string(p.Kind), p.PriceCents, string(p.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) SetFile(ctx context.Context, id uuid.UUID, key, name string, size int64, contentType string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET file_key = $2, file_name = $3, file_size = $4, content_type = $5, updated_at = NOW()
		WHERE id = $1`, id, key, name, size, contentType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(string(f.Status)))
	}
	if f.Kind != "" {
		conds = append(conds, "kind = "+arg(string(f.Kind)))
	}
	if f.ReaderID != nil {
		conds = append(conds, "reader_id = "+arg(*f.ReaderID))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price_cents >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price_cents <= "+arg(*f.MaxPrice))
	}
	if f.Query != "" {
		p := arg(likePattern(f.Query))
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	args = append(args, page.Limit, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// HasPurchased reports whether the user bought the product in any order.
func (r *ProductRepository) HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = 'paid'
		)`, userID, productID).Scan(&ok)
	return ok, err
}
