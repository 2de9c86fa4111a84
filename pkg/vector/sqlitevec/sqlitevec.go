// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Index implements vector.Index and vector.Pruner on SQLite with sqlite-vec.
//
// Each collection is two tables: <name>_points maps string point ids to
// integer rowids and carries the JSON payload, and <name>_vec is a vec0
// virtual table using cosine distance.
type Index struct {
	db     *sql.DB
	logger *slog.Logger

	mu   sync.RWMutex
	dims map[string]uint
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewIndex opens the database and verifies sqlite-vec is loaded.
func NewIndex(c Config, logger *slog.Logger) (*Index, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	logger.Info("sqlite-vec vector index initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Index{
		db:     db,
		logger: logger,
		dims:   make(map[string]uint),
	}, nil
}

// CreateCollection creates the point and vec0 tables for name.
func (d *Index) CreateCollection(ctx context.Context, name string, dim uint) error {
	if !collectionName.MatchString(name) {
		return vector.IndexError("create collection", fmt.Errorf("invalid collection name %q", name))
	}
	if dim == 0 {
		return vector.IndexError("create collection", errors.New("sqlite-vec embedding dimensions cannot be 0"))
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_points (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			point_id TEXT NOT NULL UNIQUE,
			payload TEXT NOT NULL DEFAULT '{}'
		)`, name),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s_vec USING vec0(embedding float[%d] distance_metric=cosine)`, name, dim),
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return vector.IndexError("create collection "+name, err)
		}
	}

	d.mu.Lock()
	d.dims[name] = dim
	d.mu.Unlock()

	d.logger.Debug("sqlite-vec collection ready", "collection", name, "dimensions", dim)
	return nil
}

func (d *Index) dimFor(name string) (uint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dim, ok := d.dims[name]
	if !ok {
		return 0, vector.ErrCollectionNotFound
	}
	return dim, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Upsert stores points. A point whose id already exists has its payload and
// embedding replaced.
func (d *Index) Upsert(ctx context.Context, name string, points []vector.Point) ([]string, error) {
	dim, err := d.dimFor(name)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}
	if len(points) == 0 {
		return []string{}, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(points))
	for _, p := range points {
		if err := vector.CheckDimensions(p.Vector, int(dim)); err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return nil, vector.IndexError("upsert "+name, fmt.Errorf("encoding payload for %s: %w", p.ID, err))
		}
		blob := serializeFloat32(p.Vector)

		var rowID int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s_points WHERE point_id = ?`, name), p.ID,
		).Scan(&rowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s_points SET payload = ? WHERE rowid = ?`, name),
				string(payload), rowID,
			); err != nil {
				return nil, vector.IndexError("upsert "+name, err)
			}
			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s_vec WHERE rowid = ?`, name), rowID,
			); err != nil {
				return nil, vector.IndexError("upsert "+name, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s_points(point_id, payload) VALUES (?, ?)`, name),
				p.ID, string(payload),
			)
			if err != nil {
				return nil, vector.IndexError("upsert "+name, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return nil, vector.IndexError("upsert "+name, err)
			}
		default:
			return nil, vector.IndexError("upsert "+name, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s_vec(rowid, embedding) VALUES (?, ?)`, name),
			rowID, blob,
		); err != nil {
			return nil, vector.IndexError("upsert "+name, err)
		}
		ids = append(ids, p.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, vector.IndexError("upsert "+name, fmt.Errorf("committing transaction: %w", err))
	}

	d.logger.Debug("upserted points to sqlite-vec", "collection", name, "count", len(ids))
	return ids, nil
}

// Search runs a KNN query through vec0 MATCH. Scores are 1 - cosine distance.
func (d *Index) Search(ctx context.Context, name string, vec []float32, limit int) ([]vector.Match, error) {
	dim, err := d.dimFor(name)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	if err := vector.CheckDimensions(vec, int(dim)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []vector.Match{}, nil
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.point_id, p.payload, v.distance
		FROM %[1]s_vec v
		INNER JOIN %[1]s_points p ON p.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND k = ?
		ORDER BY v.distance
	`, name), serializeFloat32(vec), limit)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	defer rows.Close()

	matches := []vector.Match{}
	for rows.Next() {
		var (
			id, payload string
			distance    sql.NullFloat64
		)
		if err := rows.Scan(&id, &payload, &distance); err != nil {
			return nil, vector.IndexError("search "+name, err)
		}
		m := vector.Match{ID: id}
		if distance.Valid && !math.IsNaN(distance.Float64) {
			m.Score = float32(1 - distance.Float64)
		}
		if err := json.Unmarshal([]byte(payload), &m.Payload); err != nil {
			return nil, vector.IndexError("search "+name, fmt.Errorf("decoding payload for %s: %w", id, err))
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	return matches, nil
}

// Delete removes points by id.
func (d *Index) Delete(ctx context.Context, name string, ids []string) error {
	if _, err := d.dimFor(name); err != nil {
		return vector.IndexError("delete "+name, err)
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	where := fmt.Sprintf("point_id IN (%s)", strings.Join(placeholders, ","))

	n, err := d.deleteWhere(ctx, name, where, args)
	if err != nil {
		return vector.IndexError("delete "+name, err)
	}
	d.logger.Debug("deleted points from sqlite-vec", "collection", name, "count", n)
	return nil
}

// DeleteBefore removes points whose payload field is a unix timestamp older
// than cutoff.
func (d *Index) DeleteBefore(ctx context.Context, name, field string, cutoff time.Time) (int, error) {
	if _, err := d.dimFor(name); err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	n, err := d.deleteWhere(ctx, name, "json_extract(payload, ?) < ?", []any{"$." + field, cutoff.Unix()})
	if err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	return n, nil
}

func (d *Index) deleteWhere(ctx context.Context, name, where string, args []any) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT rowid FROM %s_points WHERE %s`, name, where), args...)
	if err != nil {
		return 0, fmt.Errorf("querying rowids: %w", err)
	}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s_vec WHERE rowid = ?`, name), rowID); err != nil {
			return 0, fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s_points WHERE rowid = ?`, name), rowID); err != nil {
			return 0, fmt.Errorf("deleting point rowid %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(rowIDs), nil
}

// Close releases the database handle.
func (d *Index) Close() error {
	return d.db.Close()
}
