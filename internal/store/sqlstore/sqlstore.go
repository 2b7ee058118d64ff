// Package sqlstore implements store.Store on database/sql. The postgres and
// sqlite drivers share it and differ only in their Dialect.
//
// Timestamps are stored as BIGINT unix microseconds so both engines compare
// cursor positions identically.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

// Dialect captures the per-engine differences.
type Dialect struct {
	Name string
	// Numbered reports whether placeholders are written $1, $2, ... instead of ?.
	Numbered bool
	// IsConflict reports a primary key or unique constraint violation.
	IsConflict func(error) bool
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a store.Store over a *sql.DB.
type Store struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

// New wraps db. The schema must already exist.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d, now: time.Now}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Threads() store.Threads { return &threads{s} }
func (s *Store) Folders() store.Folders { return &folders{s} }
func (s *Store) Tags() store.Tags       { return &tags{s} }

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.Rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.Rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.Rebind(q), args...)
}

func (s *Store) wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	if s.d.IsConflict != nil && s.d.IsConflict(err) {
		return fmt.Errorf("%w: %s", model.ErrConflict, what)
	}
	return fmt.Errorf("%s %s: %w", s.d.Name, what, err)
}

func micros(t time.Time) int64      { return t.UnixMicro() }
func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }
func (s *Store) stamp() time.Time   { return s.now().UTC().Truncate(time.Microsecond) }

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// --- Threads ---
type threads struct{ s *Store }

const threadCols = `id, title, created_at, visibility, user_id, folder_id, updated_at`

func scanThread(sc interface{ Scan(...any) error }) (model.Thread, error) {
	var (
		t                model.Thread
		created, updated int64
		folder           sql.NullString
		vis              string
	)
	if err := sc.Scan(&t.ID, &t.Title, &created, &vis, &t.UserID, &folder, &updated); err != nil {
		return t, err
	}
	t.CreatedAt = fromMicros(created)
	t.UpdatedAt = fromMicros(updated)
	t.Visibility = model.Visibility(vis)
	if folder.Valid {
		f := folder.String
		t.FolderID = &f
	}
	return t, nil
}

func (r *threads) ownsFolder(ctx context.Context, userID string, folderID *string) error {
	if folderID == nil {
		return nil
	}
	var one int
	err := r.s.queryRow(ctx, `SELECT 1 FROM folders WHERE id = ? AND user_id = ?`, *folderID, userID).Scan(&one)
	return r.s.wrap(err, "folder "+*folderID)
}

func (r *threads) Create(ctx context.Context, t *model.Thread) (*model.Thread, error) {
	out := *t
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if err := r.ownsFolder(ctx, out.UserID, out.FolderID); err != nil {
		return nil, err
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = r.s.stamp()
	}
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Microsecond)
	out.UpdatedAt = out.CreatedAt
	out.TagIDs = nil
	_, err := r.s.exec(ctx, `
        INSERT INTO threads (`+threadCols+`)
        VALUES (?,?,?,?,?,?,?)
    `, out.ID, out.Title, micros(out.CreatedAt), string(out.Visibility), out.UserID, nullable(out.FolderID), micros(out.UpdatedAt))
	if err != nil {
		return nil, r.s.wrap(err, "thread "+out.ID)
	}
	return &out, nil
}

func (r *threads) Get(ctx context.Context, userID, threadID string) (*model.Thread, error) {
	row := r.s.queryRow(ctx, `SELECT `+threadCols+` FROM threads WHERE id = ? AND user_id = ?`, threadID, userID)
	t, err := scanThread(row)
	if err != nil {
		return nil, r.s.wrap(err, "thread "+threadID)
	}
	list := []model.Thread{t}
	if err := r.fillTags(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *threads) Page(ctx context.Context, userID string, p model.PageParams) (*model.Page, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	q := `SELECT ` + threadCols + ` FROM threads WHERE user_id = ?`
	args := []any{userID}
	if p.FolderID != nil {
		q += ` AND folder_id = ?`
		args = append(args, *p.FolderID)
	}
	order := ` ORDER BY created_at DESC, id DESC`
	if id, ok := store.CursorID(p); ok {
		var at int64
		err := r.s.queryRow(ctx, `SELECT created_at FROM threads WHERE id = ? AND user_id = ?`, id, userID).Scan(&at)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown cursor %s", model.ErrValidation, id)
		}
		if err != nil {
			return nil, r.s.wrap(err, "cursor")
		}
		if p.StartingAfter != nil {
			q += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		} else {
			q += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
			order = ` ORDER BY created_at ASC, id ASC`
		}
		args = append(args, at, at, id)
	}
	q += order + ` LIMIT ?`
	args = append(args, p.Limit+1)

	rows, err := r.s.query(ctx, q, args...)
	if err != nil {
		return nil, r.s.wrap(err, "page")
	}
	defer func() { _ = rows.Close() }()
	var list []model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, r.s.wrap(err, "page")
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, r.s.wrap(err, "page")
	}
	page := store.FinishPage(list, p)
	if err := r.fillTags(ctx, page.Threads); err != nil {
		return nil, err
	}
	return page, nil
}

// fillTags loads TagIDs for ts in one query, ordered by tag label then id.
func (r *threads) fillTags(ctx context.Context, ts []model.Thread) error {
	if len(ts) == 0 {
		return nil
	}
	idx := make(map[string]int, len(ts))
	args := make([]any, 0, len(ts))
	marks := make([]string, 0, len(ts))
	for i, t := range ts {
		idx[t.ID] = i
		args = append(args, t.ID)
		marks = append(marks, "?")
	}
	rows, err := r.s.query(ctx, `
        SELECT tt.thread_id, t.id
        FROM thread_tags tt JOIN tags t ON t.id = tt.tag_id
        WHERE tt.thread_id IN (`+strings.Join(marks, ",")+`)
        ORDER BY t.label, t.id
    `, args...)
	if err != nil {
		return r.s.wrap(err, "thread tags")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var threadID, tagID string
		if err := rows.Scan(&threadID, &tagID); err != nil {
			return r.s.wrap(err, "thread tags")
		}
		if i, ok := idx[threadID]; ok {
			ts[i].TagIDs = append(ts[i].TagIDs, tagID)
		}
	}
	return r.s.wrap(rows.Err(), "thread tags")
}

func (r *threads) Move(ctx context.Context, userID, threadID string, folderID *string) (*model.Thread, error) {
	if err := r.ownsFolder(ctx, userID, folderID); err != nil {
		return nil, err
	}
	res, err := r.s.exec(ctx, `UPDATE threads SET folder_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		nullable(folderID), micros(r.s.stamp()), threadID, userID)
	if err != nil {
		return nil, r.s.wrap(err, "thread "+threadID)
	}
	if !affected(res) {
		return nil, fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	return r.Get(ctx, userID, threadID)
}

func (r *threads) Delete(ctx context.Context, userID, threadID string) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return r.s.wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, r.s.d.Rebind(`DELETE FROM threads WHERE id = ? AND user_id = ?`), threadID, userID)
	if err != nil {
		return r.s.wrap(err, "thread "+threadID)
	}
	if !affected(res) {
		return fmt.Errorf("%w: thread %s", model.ErrNotFound, threadID)
	}
	if _, err := tx.ExecContext(ctx, r.s.d.Rebind(`DELETE FROM thread_tags WHERE thread_id = ?`), threadID); err != nil {
		return r.s.wrap(err, "thread tags")
	}
	return r.s.wrap(tx.Commit(), "commit")
}

func (r *threads) owns(ctx context.Context, table, userID, id string) error {
	var one int
	err := r.s.queryRow(ctx, `SELECT 1 FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
	return r.s.wrap(err, strings.TrimSuffix(table, "s")+" "+id)
}

func (r *threads) AddTag(ctx context.Context, userID, threadID, tagID string) error {
	if err := r.owns(ctx, "threads", userID, threadID); err != nil {
		return err
	}
	if err := r.owns(ctx, "tags", userID, tagID); err != nil {
		return err
	}
	_, err := r.s.exec(ctx, `
        INSERT INTO thread_tags (thread_id, tag_id) VALUES (?,?)
        ON CONFLICT (thread_id, tag_id) DO NOTHING
    `, threadID, tagID)
	return r.s.wrap(err, "thread tag")
}

func (r *threads) RemoveTag(ctx context.Context, userID, threadID, tagID string) error {
	if err := r.owns(ctx, "threads", userID, threadID); err != nil {
		return err
	}
	_, err := r.s.exec(ctx, `DELETE FROM thread_tags WHERE thread_id = ? AND tag_id = ?`, threadID, tagID)
	return r.s.wrap(err, "thread tag")
}

// --- Folders ---
type folders struct{ s *Store }

func (r *folders) Create(ctx context.Context, f *model.Folder) (*model.Folder, error) {
	out := *f
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	_, err := r.s.exec(ctx, `INSERT INTO folders (id, name, color, user_id) VALUES (?,?,?,?)`,
		out.ID, out.Name, out.Color, out.UserID)
	if err != nil {
		return nil, r.s.wrap(err, "folder "+out.ID)
	}
	return &out, nil
}

func (r *folders) get(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	var f model.Folder
	err := r.s.queryRow(ctx, `SELECT id, name, color, user_id FROM folders WHERE id = ? AND user_id = ?`, folderID, userID).
		Scan(&f.ID, &f.Name, &f.Color, &f.UserID)
	if err != nil {
		return nil, r.s.wrap(err, "folder "+folderID)
	}
	return &f, nil
}

func (r *folders) Rename(ctx context.Context, userID, folderID, name, color string) (*model.Folder, error) {
	res, err := r.s.exec(ctx, `
        UPDATE folders SET name = ?, color = CASE WHEN ? = '' THEN color ELSE ? END
        WHERE id = ? AND user_id = ?
    `, name, color, color, folderID, userID)
	if err != nil {
		return nil, r.s.wrap(err, "folder "+folderID)
	}
	if !affected(res) {
		return nil, fmt.Errorf("%w: folder %s", model.ErrNotFound, folderID)
	}
	return r.get(ctx, userID, folderID)
}

func (r *folders) Delete(ctx context.Context, userID, folderID string) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return r.s.wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, r.s.d.Rebind(`UPDATE threads SET folder_id = NULL WHERE folder_id = ? AND user_id = ?`), folderID, userID); err != nil {
		return r.s.wrap(err, "folder threads")
	}
	res, err := tx.ExecContext(ctx, r.s.d.Rebind(`DELETE FROM folders WHERE id = ? AND user_id = ?`), folderID, userID)
	if err != nil {
		return r.s.wrap(err, "folder "+folderID)
	}
	if !affected(res) {
		return fmt.Errorf("%w: folder %s", model.ErrNotFound, folderID)
	}
	return r.s.wrap(tx.Commit(), "commit")
}

func (r *folders) List(ctx context.Context, userID string) ([]model.Folder, error) {
	rows, err := r.s.query(ctx, `SELECT id, name, color, user_id FROM folders WHERE user_id = ? ORDER BY name, id`, userID)
	if err != nil {
		return nil, r.s.wrap(err, "folders")
	}
	defer func() { _ = rows.Close() }()
	out := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.Color, &f.UserID); err != nil {
			return nil, r.s.wrap(err, "folders")
		}
		out = append(out, f)
	}
	return out, r.s.wrap(rows.Err(), "folders")
}

// --- Tags ---
type tags struct{ s *Store }

func (r *tags) Create(ctx context.Context, t *model.Tag) (*model.Tag, error) {
	out := *t
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	_, err := r.s.exec(ctx, `INSERT INTO tags (id, label, color, user_id) VALUES (?,?,?,?)`,
		out.ID, out.Label, out.Color, out.UserID)
	if err != nil {
		return nil, r.s.wrap(err, "tag "+out.ID)
	}
	return &out, nil
}

func (r *tags) Relabel(ctx context.Context, userID, tagID, label, color string) (*model.Tag, error) {
	res, err := r.s.exec(ctx, `
        UPDATE tags SET label = ?, color = CASE WHEN ? = '' THEN color ELSE ? END
        WHERE id = ? AND user_id = ?
    `, label, color, color, tagID, userID)
	if err != nil {
		return nil, r.s.wrap(err, "tag "+tagID)
	}
	if !affected(res) {
		return nil, fmt.Errorf("%w: tag %s", model.ErrNotFound, tagID)
	}
	var t model.Tag
	err = r.s.queryRow(ctx, `SELECT id, label, color, user_id FROM tags WHERE id = ?`, tagID).
		Scan(&t.ID, &t.Label, &t.Color, &t.UserID)
	if err != nil {
		return nil, r.s.wrap(err, "tag "+tagID)
	}
	return &t, nil
}

func (r *tags) Delete(ctx context.Context, userID, tagID string) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return r.s.wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, r.s.d.Rebind(`DELETE FROM tags WHERE id = ? AND user_id = ?`), tagID, userID)
	if err != nil {
		return r.s.wrap(err, "tag "+tagID)
	}
	if !affected(res) {
		return fmt.Errorf("%w: tag %s", model.ErrNotFound, tagID)
	}
	if _, err := tx.ExecContext(ctx, r.s.d.Rebind(`DELETE FROM thread_tags WHERE tag_id = ?`), tagID); err != nil {
		return r.s.wrap(err, "thread tags")
	}
	return r.s.wrap(tx.Commit(), "commit")
}

func (r *tags) List(ctx context.Context, userID string) ([]model.Tag, error) {
	rows, err := r.s.query(ctx, `SELECT id, label, color, user_id FROM tags WHERE user_id = ? ORDER BY label, id`, userID)
	if err != nil {
		return nil, r.s.wrap(err, "tags")
	}
	defer func() { _ = rows.Close() }()
	out := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Label, &t.Color, &t.UserID); err != nil {
			return nil, r.s.wrap(err, "tags")
		}
		out = append(out, t)
	}
	return out, r.s.wrap(rows.Err(), "tags")
}
