package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/shortcode"
)

const pgForeignKeyViolation = "23503"

const linkColumns = `id, short_code, original_url, status, expires_at, click_count, owner_id, metadata, created_at, updated_at`

// Postgres is a LinkStore backed by PostgreSQL. Click events live in the
// click_events table and cascade with their link.
type Postgres struct {
	pool       *pgxpool.Pool
	gen        shortcode.Source
	maxRetries int
	now        func() time.Time
}

// NewPool creates a connection pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgres creates a Postgres store on an existing pool.
func NewPostgres(pool *pgxpool.Pool, gen shortcode.Source, maxRetries int) *Postgres {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Postgres{
		pool:       pool,
		gen:        gen,
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Create inserts a new link.
func (p *Postgres) Create(ctx context.Context, params CreateParams) (*model.Link, error) {
	now := p.now()
	if err := validateCreate(params, now); err != nil {
		return nil, err
	}

	metadata, err := encodeMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	return createWithRetry(ctx, p.gen, p.maxRetries, params.CustomCode, func(ctx context.Context, code string) (*model.Link, error) {
		link := newLink(params, code, now)
		tag, err := p.pool.Exec(ctx, `
			INSERT INTO links (id, short_code, original_url, status, expires_at, click_count, owner_id, metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
			ON CONFLICT (short_code) DO NOTHING`,
			link.ID, link.ShortCode, link.OriginalURL, int16(link.Status), link.ExpiresAt,
			link.OwnerID, metadata, link.CreatedAt, link.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create link: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, model.ErrAliasExists
		}
		return link, nil
	})
}

// Find returns the link with its effective status.
func (p *Postgres) Find(ctx context.Context, code string) (*model.Link, error) {
	link, err := scanLink(p.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by short code: %w", err)
	}
	link.Status = link.EffectiveStatus(p.now())
	return link, nil
}

// Resolve counts a click on an active link. The row lock taken by FOR UPDATE
// serializes concurrent resolves and deletes of the same code.
func (p *Postgres) Resolve(ctx context.Context, code string) (*model.Link, error) {
	var (
		resolved *model.Link
		outcome  error
	)
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		link, err := scanLink(tx.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1 FOR UPDATE`, code))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrLinkNotFound
			}
			return fmt.Errorf("failed to lock link: %w", err)
		}

		before := link.Status
		outcome = resolveLink(link, p.now())
		if outcome != nil && link.Status == before {
			return nil
		}

		// Commits either the click or the lazy expiry transition.
		if _, err := tx.Exec(ctx,
			`UPDATE links SET status = $2, click_count = $3, updated_at = $4 WHERE id = $1`,
			link.ID, int16(link.Status), link.ClickCount, link.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to record click: %w", err)
		}
		if outcome == nil {
			resolved = link
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return resolved, nil
}

// Update applies a partial update.
func (p *Postgres) Update(ctx context.Context, code string, params UpdateParams) (*model.Link, error) {
	var updated *model.Link
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		link, err := scanLink(tx.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1 FOR UPDATE`, code))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrLinkNotFound
			}
			return fmt.Errorf("failed to lock link: %w", err)
		}

		if err := applyUpdate(link, params, p.now()); err != nil {
			return err
		}
		metadata, err := encodeMetadata(link.Metadata)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE links
			SET original_url = $2, status = $3, expires_at = $4, metadata = $5, updated_at = $6
			WHERE id = $1`,
			link.ID, link.OriginalURL, int16(link.Status), link.ExpiresAt, metadata, link.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to update link: %w", err)
		}
		updated = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the link; its click events go with it via ON DELETE CASCADE.
func (p *Postgres) Delete(ctx context.Context, code string) (*model.Link, error) {
	link, err := scanLink(p.pool.QueryRow(ctx, `DELETE FROM links WHERE short_code = $1 RETURNING `+linkColumns, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to delete link: %w", err)
	}
	return link, nil
}

var sortColumns = map[SortField]string{
	SortByCreatedAt:  "created_at",
	SortByUpdatedAt:  "updated_at",
	SortByClickCount: "click_count",
	SortByExpiresAt:  "expires_at",
}

// List returns a page of links matching the query.
func (p *Postgres) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	q = q.Normalize()
	now := p.now()

	where, args := listFilter(q, now)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM links`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}
	nulls := ""
	if q.SortBy == SortByExpiresAt {
		nulls = " NULLS LAST"
		if !q.Ascending {
			nulls = " NULLS FIRST"
		}
	}

	args = append(args, q.Size, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM links%s ORDER BY %s %s%s, id %s LIMIT $%d OFFSET $%d`,
		linkColumns, where, column, direction, nulls, direction, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0, q.Size)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		link.Status = link.EffectiveStatus(now)
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return &ListResult{
		Links:      links,
		Pagination: model.NewPagination(q.Page, q.Size, total),
	}, nil
}

// listFilter builds the WHERE clause for a list query.
func listFilter(q ListQuery, now time.Time) (string, []any) {
	var clauses []string
	var args []any

	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if q.Status != nil {
		switch *q.Status {
		case model.LinkStatusActive:
			args = append(args, now)
			clauses = append(clauses, fmt.Sprintf("status = 0 AND (expires_at IS NULL OR expires_at > $%d)", len(args)))
		case model.LinkStatusExpired:
			args = append(args, now)
			clauses = append(clauses, fmt.Sprintf("(status = 2 OR (status = 0 AND expires_at <= $%d))", len(args)))
		case model.LinkStatusInactive, model.LinkStatusBlocked:
			args = append(args, int16(*q.Status))
			clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Summary returns store-wide totals.
func (p *Postgres) Summary(ctx context.Context) (model.ServiceSummary, error) {
	var s model.ServiceSummary
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 0 AND (expires_at IS NULL OR expires_at > $1)),
		       COALESCE(SUM(click_count), 0)
		FROM links`, p.now(),
	).Scan(&s.TotalURLs, &s.ActiveURLs, &s.TotalClicks)
	if err != nil {
		return s, fmt.Errorf("failed to summarize links: %w", err)
	}
	return s, nil
}

func scanLink(row pgx.Row) (*model.Link, error) {
	var (
		link     model.Link
		status   int16
		metadata []byte
	)
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&status,
		&link.ExpiresAt,
		&link.ClickCount,
		&link.OwnerID,
		&metadata,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.Status = model.LinkStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &link.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &link, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, model.ErrValidation.WithFields(model.FieldError{Field: "metadata", Message: "metadata must be JSON-encodable"})
	}
	return b, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
