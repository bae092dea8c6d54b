package store

import (
	"fmt"

	"github.com/signalboard/signalboard/internal/types"
)

// InsertDigest appends a generated digest. No dedup by date: every generation
// run gets its own row.
func (s *Store) InsertDigest(d types.Digest) error {
	if d.ID == "" {
		return fmt.Errorf("digest ID is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO digests (id, date, content_md) VALUES (?, ?, ?)
	`, d.ID, d.Date, d.ContentMD)
	if err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}
	return nil
}

// ListDigests returns the most recent digests, newest date first. Within a
// date, later generation runs sort first.
func (s *Store) ListDigests(limit int) ([]types.Digest, error) {
	rows, err := s.db.Query(`
		SELECT id, date, content_md FROM digests
		ORDER BY date DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []types.Digest
	for rows.Next() {
		var d types.Digest
		if err := rows.Scan(&d.ID, &d.Date, &d.ContentMD); err != nil {
			continue
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}
