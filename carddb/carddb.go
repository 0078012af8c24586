// Package carddb resolves tag card codes against the card database.
package carddb

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"cardbridge/tagcode"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Lookup when no card matches the passcode.
var ErrNotFound = errors.New("carddb: card not found")

// fallbackArt is served when a card's art file is missing from the
// database directory.
const fallbackArt = "unknowncardart.png"

// Card is a resolved lookup result, ready for delivery to viewers.
type Card struct {
	Passcode  string // database key that produced this record
	Data      string // raw JSON document from the cards table
	Edition   string // printed edition name, e.g. "1st Edition"
	SetString string // printed set designation, e.g. "LOB-EN001"
	Image     string // base64-encoded card art
}

// Store is a read-only resolver backed by the SQLite card database.
// Sidecar files (edition.json, card art) are loaded from the database's
// directory.
type Store struct {
	db       *sql.DB
	dir      string
	editions map[string]string // edition code -> printed name
}

// Open opens the card database at path. The file must already exist;
// this process never creates or migrates the database.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("card database: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	db, err := sql.Open("sqlite", abs+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dir: filepath.Dir(abs)}
	s.editions = loadEditions(filepath.Join(s.dir, "edition.json"))

	return s, nil
}

// Lookup resolves a decoded card code to a card record. Returns
// ErrNotFound when the passcode has no row; any other error is a
// transient database fault.
func (s *Store) Lookup(ctx context.Context, code tagcode.Card) (*Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT json_data, image_cropped FROM cards WHERE card_id = ?`, code.Passcode)

	var data string
	var imagePath sql.NullString
	err := row.Scan(&data, &imagePath)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query card %s: %w", code.Passcode, err)
	}

	return &Card{
		Passcode:  code.Passcode,
		Data:      data,
		Edition:   s.editions[code.Edition],
		SetString: code.SetString(),
		Image:     s.loadArt(imagePath.String),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// loadArt reads the card art referenced by the database and returns it
// base64-encoded. Falls back to the stock unknown-card art, then to no
// image at all.
func (s *Store) loadArt(imagePath string) string {
	var raw []byte
	var err error

	if imagePath != "" {
		raw, err = os.ReadFile(filepath.Join(s.dir, imagePath))
	}
	if imagePath == "" || err != nil {
		raw, err = os.ReadFile(fallbackArt)
		if err != nil {
			log.Printf("No art for %q and no %s fallback", imagePath, fallbackArt)
			return ""
		}
	}

	return base64.StdEncoding.EncodeToString(raw)
}

// loadEditions reads the edition.json sidecar, which maps printed
// edition names to their two-character tag codes, and inverts it for
// code lookups. A missing or unreadable file just disables edition
// naming.
func loadEditions(path string) map[string]string {
	editions := make(map[string]string)

	raw, err := os.ReadFile(path)
	if err != nil {
		return editions
	}

	var byName map[string]string
	if err := json.Unmarshal(raw, &byName); err != nil {
		log.Printf("Bad edition file %s: %v", path, err)
		return editions
	}

	for name, code := range byName {
		editions[code] = name
	}
	return editions
}
