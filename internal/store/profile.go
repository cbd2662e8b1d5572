package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/cursorflow/internal/config"
)

// ErrDuplicateName is returned when a profile name is already taken.
var ErrDuplicateName = errors.New("profile name already exists")

// Profile is a named engine configuration. At most one profile is active.
type Profile struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Config      config.Config `json:"config"`
	Active      bool          `json:"active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProfileRepository provides CRUD operations for profiles. Configurations
// are stored as YAML text.
type ProfileRepository struct {
	db *sql.DB
}

// Profiles returns the profile repository for this store.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{db: s.db}
}

const profileColumns = `id, name, description, config, active, created_at, updated_at`

// Create validates p.Config and inserts p, assigning an ID when empty.
func (r *ProfileRepository) Create(p *Profile) error {
	text, err := encodeProfileConfig(p.Config)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, err := r.GetByName(p.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = false

	_, err = r.db.Exec(
		`INSERT INTO profiles (id, name, description, config, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		p.ID, p.Name, p.Description, text, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(id string) (*Profile, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
}

// GetByName retrieves a profile by its name.
func (r *ProfileRepository) GetByName(name string) (*Profile, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name))
}

// Active returns the active profile, or ErrNotFound when none is active.
func (r *ProfileRepository) Active() (*Profile, error) {
	return r.scanOne(r.db.QueryRow(`SELECT ` + profileColumns + ` FROM profiles WHERE active = 1 LIMIT 1`))
}

// List retrieves all profiles ordered by name.
func (r *ProfileRepository) List() ([]*Profile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Update replaces the name, description and configuration of p.
func (r *ProfileRepository) Update(p *Profile) error {
	text, err := encodeProfileConfig(p.Config)
	if err != nil {
		return err
	}
	if other, err := r.GetByName(p.Name); err == nil && other.ID != p.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
	}

	p.UpdatedAt = time.Now()
	result, err := r.db.Exec(
		`UPDATE profiles SET name = ?, description = ?, config = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, text, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes a profile by its ID.
func (r *ProfileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetActive marks id as the only active profile.
func (r *ProfileRepository) SetActive(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE profiles SET active = 0 WHERE active = 1`); err != nil {
		return err
	}
	result, err := tx.Exec(`UPDATE profiles SET active = 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ProfileRepository) scanOne(row *sql.Row) (*Profile, error) {
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*Profile, error) {
	p := &Profile{}
	var text string
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &text, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	cfg, err := config.Parse([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	p.Config = cfg
	return p, nil
}

func encodeProfileConfig(cfg config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	text, err := config.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
