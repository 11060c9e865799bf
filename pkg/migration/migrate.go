// Package migration はSQLiteのスキーマを番号付きSQLファイルで段階的に更新する。
//
// ファイル名は 000001_説明.up.sql の形式とし、番号の昇順で1度だけ適用する。
// 適用済みの番号は schema_migrations テーブルに記録される。
package migration

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const upSuffix = ".up.sql"

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
)`

// step は1つのupマイグレーション。
type step struct {
	version int
	label   string
	file    string
}

// Run はdir配下の未適用マイグレーションを番号順に適用する。
func Run(db *sqlx.DB, fsys fs.FS, dir string, logger *zap.Logger) error {
	return RunContext(context.Background(), db, fsys, dir, logger)
}

// RunContext はctxを伝播するRun。
func RunContext(ctx context.Context, db *sqlx.DB, fsys fs.FS, dir string, logger *zap.Logger) error {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return errors.Wrap(err, "prepare schema_migrations")
	}

	steps, err := scan(fsys, dir)
	if err != nil {
		return errors.Wrapf(err, "scan %s", dir)
	}

	var done []int
	if err := db.SelectContext(ctx, &done, "SELECT version FROM schema_migrations"); err != nil {
		return errors.Wrap(err, "load applied versions")
	}

	for _, s := range steps {
		if slices.Contains(done, s.version) {
			continue
		}
		if err := apply(ctx, db, fsys, s); err != nil {
			return errors.Wrapf(err, "migration %06d_%s", s.version, s.label)
		}
		logger.Info("マイグレーション適用",
			zap.Int("version", s.version),
			zap.String("label", s.label),
		)
	}
	return nil
}

// scan はup.sqlを番号順に並べて返す。番号を読めないファイルは無視する。
func scan(fsys fs.FS, dir string) ([]step, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*"+upSuffix))
	if err != nil {
		return nil, err
	}
	if _, err := fs.Stat(fsys, dir); err != nil {
		return nil, err
	}

	steps := make([]step, 0, len(files))
	for _, f := range files {
		base := strings.TrimSuffix(path.Base(f), upSuffix)
		num, label, found := strings.Cut(base, "_")
		if !found {
			continue
		}
		v, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		steps = append(steps, step{version: v, label: label, file: f})
	}
	slices.SortFunc(steps, func(a, b step) int { return a.version - b.version })
	return steps, nil
}

// apply はSQLの実行と番号の記録を同じトランザクションで行う。
func apply(ctx context.Context, db *sqlx.DB, fsys fs.FS, s step) (err error) {
	body, err := fs.ReadFile(fsys, s.file)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", s.version); err != nil {
		return err
	}
	return tx.Commit()
}
