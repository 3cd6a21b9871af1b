package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// supervisorStore persists the supervisors document. It keeps no backups;
// pitch history is append-only and low-stakes.
type supervisorStore struct {
	path string
	book *SupervisorBook
}

func openSupervisors(path string) (*supervisorStore, error) {
	s := &supervisorStore{path: path, book: &SupervisorBook{Supervisors: []*Supervisor{}}}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read supervisors: %w", err)
	}
	var book SupervisorBook
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to parse supervisors %s: %w", path, err)
	}
	if book.Supervisors == nil {
		book.Supervisors = []*Supervisor{}
	}
	s.book = &book
	return s, nil
}

// find matches names case-insensitively
func (s *supervisorStore) find(name string) *Supervisor {
	for _, sup := range s.book.Supervisors {
		if strings.EqualFold(sup.Name, name) {
			return sup
		}
	}
	return nil
}

func (s *supervisorStore) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.book, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}
