// Package entdriver implements storage.Driver with ent's dialect-aware SQL
// builder. It is database-agnostic and is embedded by the sqlite and
// postgres drivers.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

const (
	tableConversations = "conversations"
	tableKnowledge     = "knowledge_base"
	tableInsights      = "document_insights"
)

var (
	conversationColumns = []string{"id", "timestamp", "actor", "content", "tag"}
	insightColumns      = []string{"id", "timestamp", "document_path", "insight_text", "relevance", "insight_type"}
)

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	Driver *sql.Driver
}

// Migrate creates the log tables when they do not exist.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	d := sql.Dialect(ed.Driver.Dialect())
	idType, floatType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if ed.Driver.Dialect() == dialect.Postgres {
		idType, floatType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	tables := []*sql.TableBuilder{
		d.CreateTable(tableConversations).IfNotExists().Columns(
			sql.Column("id").Type(idType),
			sql.Column("timestamp").Type("BIGINT").Attr("NOT NULL"),
			sql.Column("actor").Type("TEXT").Attr("NOT NULL"),
			sql.Column("content").Type("TEXT").Attr("NOT NULL"),
			sql.Column("tag").Type("TEXT"),
		),
		d.CreateTable(tableKnowledge).IfNotExists().Columns(
			sql.Column("key").Type("TEXT").Attr("PRIMARY KEY"),
			sql.Column("value").Type("TEXT").Attr("NOT NULL"),
			sql.Column("updated_at").Type("BIGINT").Attr("NOT NULL"),
		),
		d.CreateTable(tableInsights).IfNotExists().Columns(
			sql.Column("id").Type(idType),
			sql.Column("timestamp").Type("BIGINT").Attr("NOT NULL"),
			sql.Column("document_path").Type("TEXT"),
			sql.Column("insight_text").Type("TEXT").Attr("NOT NULL"),
			sql.Column("relevance").Type(floatType),
			sql.Column("insight_type").Type("TEXT"),
		),
	}

	for _, t := range tables {
		query, args := t.Query()
		if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (ed *EntDriver) Append(ctx context.Context, c *storage.Conversation) (int64, error) {
	if c == nil {
		return 0, errors.New("cannot append nil conversation")
	}
	ts := c.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	insert := ed.builder().Insert(tableConversations).
		Columns("timestamp", "actor", "content", "tag").
		Values(ts.UnixNano(), c.Actor, c.Content, c.Tag)

	id, err := ed.insert(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("could not append conversation: %w", err)
	}
	return id, nil
}

func (ed *EntDriver) Recent(ctx context.Context, limit int) ([]*storage.Conversation, error) {
	sel := ed.builder().Select(conversationColumns...).
		From(sql.Table(tableConversations)).
		OrderBy(sql.Desc("timestamp"), sql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return ed.queryConversations(ctx, sel)
}

func (ed *EntDriver) Search(ctx context.Context, pattern string, limit int) ([]*storage.Conversation, error) {
	sel := ed.builder().Select(conversationColumns...).
		From(sql.Table(tableConversations)).
		Where(sql.Contains("content", pattern)).
		OrderBy(sql.Desc("timestamp"), sql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return ed.queryConversations(ctx, sel)
}

func (ed *EntDriver) SaveKnowledge(ctx context.Context, key, value string) error {
	query, args := ed.builder().Insert(tableKnowledge).
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UnixNano()).
		OnConflict(sql.ConflictColumns("key"), sql.ResolveWithNewValues()).
		Query()

	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not save knowledge %q: %w", key, err)
	}
	return nil
}

func (ed *EntDriver) GetKnowledge(ctx context.Context, key string) (*storage.Knowledge, error) {
	query, args := ed.builder().Select("key", "value", "updated_at").
		From(sql.Table(tableKnowledge)).
		Where(sql.EQ("key", key)).
		Query()

	rows := &sql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to get knowledge: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get knowledge: %w", err)
		}
		return nil, storage.NotFoundError{Key: key}
	}

	var (
		k       storage.Knowledge
		updated int64
	)
	if err := rows.Scan(&k.Key, &k.Value, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan knowledge: %w", err)
	}
	k.UpdatedAt = time.Unix(0, updated)
	return &k, nil
}

func (ed *EntDriver) SaveInsight(ctx context.Context, in *storage.DocumentInsight) (int64, error) {
	if in == nil {
		return 0, errors.New("cannot save nil insight")
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	insert := ed.builder().Insert(tableInsights).
		Columns("timestamp", "document_path", "insight_text", "relevance", "insight_type").
		Values(ts.UnixNano(), in.DocumentPath, in.InsightText, in.Relevance, in.InsightType)

	id, err := ed.insert(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("could not save insight: %w", err)
	}
	return id, nil
}

func (ed *EntDriver) DocumentInsights(ctx context.Context, documentPath string) ([]*storage.DocumentInsight, error) {
	sel := ed.builder().Select(insightColumns...).
		From(sql.Table(tableInsights)).
		Where(sql.EQ("document_path", documentPath)).
		OrderBy(sql.Desc("relevance"), sql.Asc("id"))
	return ed.queryInsights(ctx, sel)
}

func (ed *EntDriver) SearchInsights(ctx context.Context, pattern string, limit int) ([]*storage.DocumentInsight, error) {
	sel := ed.builder().Select(insightColumns...).
		From(sql.Table(tableInsights)).
		Where(sql.Contains("insight_text", pattern)).
		OrderBy(sql.Desc("relevance"), sql.Asc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return ed.queryInsights(ctx, sel)
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) builder() *sql.DialectBuilder {
	return sql.Dialect(ed.Driver.Dialect())
}

// insert runs an insert and returns the generated id. Postgres reports it
// through RETURNING, SQLite through LastInsertId.
func (ed *EntDriver) insert(ctx context.Context, insert *sql.InsertBuilder) (int64, error) {
	if ed.Driver.Dialect() == dialect.Postgres {
		query, args := insert.Returning("id").Query()
		rows := &sql.Rows{}
		if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
			return 0, err
		}
		defer rows.Close()

		var id int64
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, errors.New("insert returned no id")
		}
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, args := insert.Query()
	var res stdsql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ed *EntDriver) queryConversations(ctx context.Context, sel *sql.Selector) ([]*storage.Conversation, error) {
	query, args := sel.Query()
	rows := &sql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*storage.Conversation, 0)
	for rows.Next() {
		var (
			c   storage.Conversation
			ts  int64
			tag stdsql.NullString
		)
		if err := rows.Scan(&c.ID, &ts, &c.Actor, &c.Content, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.Timestamp = time.Unix(0, ts)
		c.Tag = tag.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (ed *EntDriver) queryInsights(ctx context.Context, sel *sql.Selector) ([]*storage.DocumentInsight, error) {
	query, args := sel.Query()
	rows := &sql.Rows{}
	if err := ed.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	out := make([]*storage.DocumentInsight, 0)
	for rows.Next() {
		var (
			in        storage.DocumentInsight
			ts        int64
			path, typ stdsql.NullString
			relevance stdsql.NullFloat64
		)
		if err := rows.Scan(&in.ID, &ts, &path, &in.InsightText, &relevance, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		in.Timestamp = time.Unix(0, ts)
		in.DocumentPath = path.String
		in.Relevance = relevance.Float64
		in.InsightType = typ.String
		out = append(out, &in)
	}
	return out, rows.Err()
}
