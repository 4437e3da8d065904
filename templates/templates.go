// Package templates implements the System Prompt Template entity: a
// per-user (name -> message/description) record plus a pointer to which
// one is currently selected. spec.md §6 keeps this one entity off
// Postgres entirely — "per-user JSON files under a system_messages/
// directory, plus a selected_message.json per user" — so this store is
// plain os/encoding/json file I/O rather than a database/sql table,
// matching the teacher's config-by-file conventions elsewhere in the
// stack rather than inventing a new persistence layer for a handful of
// small per-user records.
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Template is the (owner_user_id, name) -> (message, description,
// created_at, updated_at) entity spec.md §3 names.
type Template struct {
	Name        string    `json:"name"`
	Message     string    `json:"message"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// selectedPointer is the contents of selected_message.json.
type selectedPointer struct {
	SelectedName string `json:"selected_name"`
}

const selectedFileName = "selected_message.json"

// Store reads and writes templates under baseDir/<user_id>/.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) userDir(userID int64) string {
	return filepath.Join(s.baseDir, strconv.FormatInt(userID, 10))
}

func (s *Store) templatePath(userID int64, name string) string {
	return filepath.Join(s.userDir(userID), name+".json")
}

// ValidTemplateName rejects names that would escape userDir or collide
// with the selected-pointer file, since name becomes a bare filename.
func ValidTemplateName(name string) bool {
	if name == "" || name == "selected_message" {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && name != "." && name != ".."
}

// Save creates or overwrites the named template for userID.
func (s *Store) Save(userID int64, name, message, description string) (Template, error) {
	if !ValidTemplateName(name) {
		return Template{}, fmt.Errorf("invalid template name %q", name)
	}

	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Template{}, fmt.Errorf("create template dir: %w", err)
	}

	now := time.Now().UTC()
	tmpl := Template{Name: name, Message: message, Description: description, CreatedAt: now, UpdatedAt: now}
	if existing, err := s.Get(userID, name); err == nil {
		tmpl.CreatedAt = existing.CreatedAt
	}

	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return Template{}, fmt.Errorf("marshal template: %w", err)
	}
	if err := os.WriteFile(s.templatePath(userID, name), data, 0o644); err != nil {
		return Template{}, fmt.Errorf("write template: %w", err)
	}
	return tmpl, nil
}

// Get reads one named template.
func (s *Store) Get(userID int64, name string) (Template, error) {
	data, err := os.ReadFile(s.templatePath(userID, name))
	if err != nil {
		return Template{}, err
	}
	var tmpl Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return Template{}, fmt.Errorf("decode template %q: %w", name, err)
	}
	return tmpl, nil
}

// List returns every template saved by userID, sorted by name.
func (s *Store) List(userID int64) ([]Template, error) {
	entries, err := os.ReadDir(s.userDir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	out := make([]Template, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == selectedFileName {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		tmpl, err := s.Get(userID, name)
		if err != nil {
			continue
		}
		out = append(out, tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a saved template. If it is the currently-selected one,
// the selection pointer is cleared too.
func (s *Store) Delete(userID int64, name string) error {
	if err := os.Remove(s.templatePath(userID, name)); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if selected, ok, err := s.readPointer(userID); err == nil && ok && selected == name {
		_ = os.Remove(filepath.Join(s.userDir(userID), selectedFileName))
	}
	return nil
}

// Select marks name as the active template for userID, failing if it
// does not exist.
func (s *Store) Select(userID int64, name string) error {
	if _, err := s.Get(userID, name); err != nil {
		return fmt.Errorf("select template: %w", err)
	}
	data, err := json.Marshal(selectedPointer{SelectedName: name})
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.userDir(userID), selectedFileName), data, 0o644); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

func (s *Store) readPointer(userID int64) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.userDir(userID), selectedFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	var ptr selectedPointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return "", false, fmt.Errorf("decode selection: %w", err)
	}
	return ptr.SelectedName, ptr.SelectedName != "", nil
}

// Selected returns the currently-active template for userID, if any.
func (s *Store) Selected(userID int64) (Template, bool, error) {
	name, ok, err := s.readPointer(userID)
	if err != nil || !ok {
		return Template{}, false, err
	}
	tmpl, err := s.Get(userID, name)
	if err != nil {
		return Template{}, false, nil
	}
	return tmpl, true, nil
}
