package rules

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nao1215/notifyhub/pkg/migration"
	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRuleNotFound は指定カテゴリのルールが存在しないことを表す。
var ErrRuleNotFound = errors.New("rule not found")

// SQLiteStore はロールアップルールをSQLiteに保存する。
type SQLiteStore struct {
	db *sqlx.DB
}

// ruleRow はrollup_rulesテーブルの1行。
type ruleRow struct {
	Category      string         `db:"category"`
	MaxSize       sql.NullInt64  `db:"max_size"`
	MaxDurationMS sql.NullInt64  `db:"max_duration_ms"`
	MatchOn       sql.NullString `db:"match_on"`
}

func (r ruleRow) rule() model.Rule {
	var out model.Rule
	if r.MaxSize.Valid {
		out.MaxSize = int(r.MaxSize.Int64)
	}
	if r.MaxDurationMS.Valid {
		out.MaxDuration = time.Duration(r.MaxDurationMS.Int64) * time.Millisecond
	}
	if r.MatchOn.Valid {
		out.MatchOn = r.MatchOn.String
	}
	return out
}

func toRow(category string, r model.Rule) ruleRow {
	return ruleRow{
		Category:      category,
		MaxSize:       sql.NullInt64{Int64: int64(r.MaxSize), Valid: r.HasMaxSize()},
		MaxDurationMS: sql.NullInt64{Int64: r.MaxDuration.Milliseconds(), Valid: r.HasMaxDuration()},
		MatchOn:       sql.NullString{String: r.MatchOn, Valid: r.HasMatchOn()},
	}
}

// OpenSQLite はpathのSQLiteを開き、WALモードを有効にしてマイグレーションを適用する。
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のDBになるため1接続に制限する
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}
	if err := migration.Run(db, migrationsFS, "migrations", logger); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close はDB接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List は全カテゴリのルールを返す。
func (s *SQLiteStore) List(ctx context.Context) (map[string]model.Rule, error) {
	var rows []ruleRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT category, max_size, max_duration_ms, match_on FROM rollup_rules ORDER BY category")
	if err != nil {
		return nil, errors.Wrap(err, "list rules")
	}
	out := make(map[string]model.Rule, len(rows))
	for _, r := range rows {
		out[r.Category] = r.rule()
	}
	return out, nil
}

// Get はカテゴリのルールを返す。
func (s *SQLiteStore) Get(ctx context.Context, category string) (model.Rule, error) {
	var row ruleRow
	err := s.db.GetContext(ctx, &row,
		"SELECT category, max_size, max_duration_ms, match_on FROM rollup_rules WHERE category = ?", category)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rule{}, errors.Wrapf(ErrRuleNotFound, "category %q", category)
	}
	if err != nil {
		return model.Rule{}, errors.Wrapf(err, "get rule %q", category)
	}
	return row.rule(), nil
}

// Put はカテゴリのルールを作成または置き換える。
func (s *SQLiteStore) Put(ctx context.Context, category string, r model.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO rollup_rules (category, max_size, max_duration_ms, match_on)
		VALUES (:category, :max_size, :max_duration_ms, :match_on)
		ON CONFLICT(category) DO UPDATE SET
			max_size = excluded.max_size,
			max_duration_ms = excluded.max_duration_ms,
			match_on = excluded.match_on,
			updated_at = datetime('now')`,
		toRow(category, r))
	if err != nil {
		return errors.Wrapf(err, "put rule %q", category)
	}
	return nil
}

// Delete はカテゴリのルールを削除する。
func (s *SQLiteStore) Delete(ctx context.Context, category string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rollup_rules WHERE category = ?", category)
	if err != nil {
		return errors.Wrapf(err, "delete rule %q", category)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete rule %q", category)
	}
	if n == 0 {
		return errors.Wrapf(ErrRuleNotFound, "category %q", category)
	}
	return nil
}
