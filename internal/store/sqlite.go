package store

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps a sqlx.DB over modernc.org/sqlite, the pure-Go driver so the
// binary stays cgo-free (spec §6: "a relational store with tables files,
// vorbis_meta, vorbis_comments, picture_metadata, padding").
type Store struct {
	DB *sqlx.DB
}

// Open connects to dataSourceName (a sqlite DSN, e.g. "file:musicmaid.db")
// and applies the embedded schema.
func Open(dataSourceName string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	for _, entry := range entries {
		sqlBytes, err := migrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := s.DB.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("applying migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

// LoadVorbisByPath returns the first comment block recorded for path and
// its comments, for the write developer subcommand (spec §6) and the oni
// daemon's Search, which operate on a single already-ingested file rather
// than a batch.
func (s *Store) LoadVorbisByPath(path string) (VorbisMeta, []VorbisComment, error) {
	var fileID int64
	if err := s.DB.Get(&fileID, `SELECT id FROM files WHERE path = ?`, path); err != nil {
		return VorbisMeta{}, nil, fmt.Errorf("looking up %s: %w", path, err)
	}

	var vm VorbisMeta
	if err := s.DB.Get(&vm, `SELECT * FROM vorbis_meta WHERE file_id = ? LIMIT 1`, fileID); err != nil {
		return VorbisMeta{}, nil, fmt.Errorf("loading vorbis_meta for %s: %w", path, err)
	}

	var comments []VorbisComment
	if err := s.DB.Select(&comments, `SELECT * FROM vorbis_comments WHERE meta_id = ?`, vm.ID); err != nil {
		return VorbisMeta{}, nil, fmt.Errorf("loading vorbis_comments for %s: %w", path, err)
	}
	return vm, comments, nil
}

// InsertBatch commits one AudioFileMeta per file in a single transaction —
// the unit of work the write-back queue hands it (spec §5's "commits the
// batch in a single transaction").
func (s *Store) InsertBatch(batch []AudioFileMeta) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return err
	}
	for _, meta := range batch {
		if err := insertOne(tx, meta); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func insertOne(tx *sqlx.Tx, meta AudioFileMeta) error {
	res, err := tx.NamedExec(
		`INSERT INTO files (path, name, format) VALUES (:path, :name, :format)`,
		meta.File,
	)
	if err != nil {
		return fmt.Errorf("inserting file %s: %w", meta.File.Path, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, vm := range meta.Metas {
		vm.FileID = fileID
		mres, err := tx.NamedExec(
			`INSERT INTO vorbis_meta (file_id, file_ptr, end_ptr, comment_amount_ptr, vendor)
			 VALUES (:file_id, :file_ptr, :end_ptr, :comment_amount_ptr, :vendor)`,
			vm,
		)
		if err != nil {
			return fmt.Errorf("inserting vorbis_meta for %s: %w", meta.File.Path, err)
		}
		metaID, err := mres.LastInsertId()
		if err != nil {
			return err
		}
		for _, c := range meta.Comments[i] {
			c.MetaID = metaID
			if _, err := tx.NamedExec(
				`INSERT INTO vorbis_comments (meta_id, key, value, file_ptr, last_ogg_header_ptr, size)
				 VALUES (:meta_id, :key, :value, :file_ptr, :last_ogg_header_ptr, :size)`,
				c,
			); err != nil {
				return fmt.Errorf("inserting vorbis_comment %q for %s: %w", c.Key, meta.File.Path, err)
			}
		}
	}

	for _, pic := range meta.Pictures {
		pic.FileID = fileID
		if _, err := tx.NamedExec(
			`INSERT INTO picture_metadata
			 (file_id, file_ptr, picture_type, mime, description, width, height, color_depth, indexed_color_number, size, vorbis_comment)
			 VALUES (:file_id, :file_ptr, :picture_type, :mime, :description, :width, :height, :color_depth, :indexed_color_number, :size, :vorbis_comment)`,
			pic,
		); err != nil {
			return fmt.Errorf("inserting picture for %s: %w", meta.File.Path, err)
		}
	}

	for _, pad := range meta.Paddings {
		pad.FileID = fileID
		if _, err := tx.NamedExec(
			`INSERT INTO padding (file_id, file_ptr, byte_size) VALUES (:file_id, :file_ptr, :byte_size)`,
			pad,
		); err != nil {
			return fmt.Errorf("inserting padding for %s: %w", meta.File.Path, err)
		}
	}

	return nil
}
