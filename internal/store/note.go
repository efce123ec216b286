package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ewagner/picnote/internal/model"
)

type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

func scanNote(scanner interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	var pinned int
	err := scanner.Scan(&n.ID, &n.Title, &n.Body, &n.Color, &pinned, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Pinned = pinned != 0
	return &n, nil
}

const noteCols = `id, title, body, color, pinned, created_at, updated_at`

func (s *NoteStore) Create(title, body, color string, pinned bool) (*model.Note, error) {
	var p int
	if pinned {
		p = 1
	}
	result, err := s.db.Exec(
		`INSERT INTO notes (title, body, color, pinned) VALUES (?, ?, ?, ?)`,
		title, body, color, p,
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *NoteStore) GetByID(id int64) (*model.Note, error) {
	row := s.db.QueryRow(`SELECT `+noteCols+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// List returns all notes, pinned first, most recently updated first within
// each group.
func (s *NoteStore) List() ([]model.Note, error) {
	rows, err := s.db.Query(`SELECT ` + noteCols + ` FROM notes ORDER BY pinned DESC, updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

// Search returns notes whose title or body contains the query, same
// ordering as List.
func (s *NoteStore) Search(query string) ([]model.Note, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT `+noteCols+` FROM notes WHERE title LIKE ? OR body LIKE ? ORDER BY pinned DESC, updated_at DESC, id DESC`,
		pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

func collectNotes(rows *sql.Rows) ([]model.Note, error) {
	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (s *NoteStore) Update(id int64, title, body, color string, pinned bool) (*model.Note, error) {
	var p int
	if pinned {
		p = 1
	}
	_, err := s.db.Exec(
		`UPDATE notes SET title = ?, body = ?, color = ?, pinned = ?, updated_at = ? WHERE id = ?`,
		title, body, color, p, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return s.GetByID(id)
}

func (s *NoteStore) TogglePinned(id int64) (*model.Note, error) {
	note, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, nil
	}

	newPinned := 0
	if !note.Pinned {
		newPinned = 1
	}
	_, err = s.db.Exec(`UPDATE notes SET pinned = ?, updated_at = ? WHERE id = ?`, newPinned, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("toggle pinned: %w", err)
	}
	return s.GetByID(id)
}

func (s *NoteStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
