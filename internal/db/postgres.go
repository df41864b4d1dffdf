package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresDriver stores each collection as a PostgreSQL table of JSONB documents.
type PostgresDriver struct {
	url     string
	connect func(ctx context.Context, url string) (Pool, error)
}

// NewPostgresDriver returns a driver that connects to databaseURL on Open.
func NewPostgresDriver(databaseURL string) *PostgresDriver {
	return &PostgresDriver{
		url: databaseURL,
		connect: func(ctx context.Context, url string) (Pool, error) {
			return Connect(ctx, url)
		},
	}
}

// Open creates the connection pool and verifies the server responds.
func (d *PostgresDriver) Open(ctx context.Context) (Conn, error) {
	pool, err := d.connect(ctx, d.url)
	if err != nil {
		return nil, err
	}
	return NewPostgresConn(pool), nil
}

// NewPostgresConn wraps an existing pool as a store connection.
func NewPostgresConn(pool Pool) Conn {
	return &postgresConn{pool: pool}
}

type postgresConn struct {
	pool Pool
}

func (c *postgresConn) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	table := pgx.Identifier{spec.Name}.Sanitize()
	if _, err := conn.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id  TEXT PRIMARY KEY,
            doc JSONB NOT NULL
        )`, table)); err != nil {
		return fmt.Errorf("create collection %s: %w", spec.Name, err)
	}

	for _, fields := range spec.Unique {
		if len(fields) == 0 {
			continue
		}
		exprs := make([]string, 0, len(fields))
		for _, field := range fields {
			exprs = append(exprs, fmt.Sprintf("(doc->>%s)", quoteLiteral(field)))
		}
		index := pgx.Identifier{spec.Name + "_" + strings.Join(fields, "_") + "_key"}.Sanitize()
		if _, err := conn.Exec(ctx, fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)`,
			index, table, strings.Join(exprs, ", "))); err != nil {
			return fmt.Errorf("create unique index on %s(%s): %w", spec.Name, strings.Join(fields, ","), err)
		}
	}

	return nil
}

func (c *postgresConn) Collection(name string) Collection {
	return &postgresCollection{
		pool:  c.pool,
		name:  name,
		table: pgx.Identifier{name}.Sanitize(),
	}
}

func (c *postgresConn) Close() {
	c.pool.Close()
}

type postgresCollection struct {
	pool  Pool
	name  string
	table string
}

func (c *postgresCollection) Name() string { return c.name }

func (c *postgresCollection) InsertOne(ctx context.Context, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (id, doc)
        VALUES ($1, $2::jsonb)
    `, c.table), id, string(raw))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert into %s: %w", c.name, err)
	}

	return nil
}

func (c *postgresCollection) FindOne(ctx context.Context, filter Filter, out any) (bool, error) {
	var b sqlBuilder
	where, err := b.where(filter)
	if err != nil {
		return false, err
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var raw []byte
	row := conn.QueryRow(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE %s LIMIT 1`, c.table, where), b.args...)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select from %s: %w", c.name, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	return true, nil
}

func (c *postgresCollection) Find(ctx context.Context, filter Filter, out any, opts ...FindOption) error {
	o := buildFindOptions(opts)

	var b sqlBuilder
	where, err := b.where(filter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s`, c.table, where)
	switch {
	case o.SortField == IDField:
		query += " ORDER BY id ASC"
	case o.SortField != "":
		query += fmt.Sprintf(" ORDER BY doc->%s::text ASC, id ASC", b.arg(o.SortField))
	}
	if o.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(o.Limit)
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	var raws [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan %s document: %w", c.name, err)
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", c.name, err)
	}

	return decodeArray(raws, out)
}

func (c *postgresCollection) UpdateOne(ctx context.Context, filter Filter, set map[string]any) (int64, error) {
	var b sqlBuilder
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}

	raw, err := json.Marshal(set)
	if err != nil {
		return 0, fmt.Errorf("encode update: %w", err)
	}
	patch := b.arg(string(raw))

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, fmt.Sprintf(`
        UPDATE %[1]s
        SET doc = doc || %[2]s::jsonb
        WHERE id = (SELECT id FROM %[1]s WHERE %[3]s LIMIT 1)
    `, c.table, patch, where), b.args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("update %s: %w", c.name, err)
	}

	return tag.RowsAffected(), nil
}

func (c *postgresCollection) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	var b sqlBuilder
	where, err := b.where(filter)
	if err != nil {
		return 0, err
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, fmt.Sprintf(`
        DELETE FROM %[1]s
        WHERE id = (SELECT id FROM %[1]s WHERE %[2]s LIMIT 1)
    `, c.table, where), b.args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", c.name, err)
	}

	return tag.RowsAffected(), nil
}

// sqlBuilder renders filters as SQL over the doc column, collecting positional
// arguments as it goes. Field names are always passed as arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(f Filter) (string, error) {
	var parts []string
	for _, cond := range f.All {
		sql, err := b.cond(cond)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}

	if len(f.Any) > 0 {
		alternatives := make([]string, 0, len(f.Any))
		for _, cond := range f.Any {
			sql, err := b.cond(cond)
			if err != nil {
				return "", err
			}
			alternatives = append(alternatives, sql)
		}
		parts = append(parts, "("+strings.Join(alternatives, " OR ")+")")
	}

	if len(parts) == 0 {
		return "TRUE", nil
	}
	return strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) cond(c Cond) (string, error) {
	switch c.Op {
	case OpEq:
		if c.Field == IDField {
			id, ok := c.Value.(string)
			if !ok {
				return "", fmt.Errorf("db: %s must be compared with a string, got %T", IDField, c.Value)
			}
			return "id = " + b.arg(id) + "::text", nil
		}
		raw, err := json.Marshal(map[string]any{c.Field: c.Value})
		if err != nil {
			return "", fmt.Errorf("encode condition on %s: %w", c.Field, err)
		}
		return "doc @> " + b.arg(string(raw)) + "::jsonb", nil
	case OpIn:
		values, ok := c.Value.([]string)
		if !ok {
			return "", fmt.Errorf("db: in condition on %s requires []string, got %T", c.Field, c.Value)
		}
		if c.Field == IDField {
			return "id = ANY(" + b.arg(values) + "::text[])", nil
		}
		return "doc->>" + b.arg(c.Field) + "::text = ANY(" + b.arg(values) + "::text[])", nil
	case OpGt:
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return "", fmt.Errorf("encode condition on %s: %w", c.Field, err)
		}
		return "(doc->" + b.arg(c.Field) + "::text) > " + b.arg(string(raw)) + "::jsonb", nil
	case OpContains:
		substr, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("db: contains condition on %s requires a string, got %T", c.Field, c.Value)
		}
		return "strpos(doc->>" + b.arg(c.Field) + "::text, " + b.arg(substr) + "::text) > 0", nil
	default:
		return "", fmt.Errorf("db: unsupported operator %d", c.Op)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ Driver = (*PostgresDriver)(nil)
