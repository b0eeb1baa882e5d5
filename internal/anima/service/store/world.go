package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/internal/anima/service/world"
)

const envColumns = `uuid, name, overall_description, atmosphere, lighting, sounds, smells, is_active, created_at`

// InsertEnvironment stores an environment.
func (s *Store) InsertEnvironment(ctx context.Context, env *world.Environment) error {
	if env.UUID == "" {
		env.UUID = uuid.NewString()
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableEnvironments+` (`+envColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		env.UUID, env.Name, env.OverallDescription, env.Atmosphere, env.Lighting,
		env.Sounds, env.Smells, env.IsActive, env.CreatedAt)
	return err
}

// GetEnvironment returns an environment by uuid.
func (s *Store) GetEnvironment(ctx context.Context, id string) (*world.Environment, error) {
	return s.scanEnvironment(ctx,
		`SELECT `+envColumns+` FROM `+TableEnvironments+` WHERE uuid = ?`, id)
}

// GetEnvironmentByName matches a name case-insensitively.
func (s *Store) GetEnvironmentByName(ctx context.Context, name string) (*world.Environment, error) {
	return s.scanEnvironment(ctx,
		`SELECT `+envColumns+` FROM `+TableEnvironments+` WHERE name = ? COLLATE NOCASE`, name)
}

// ActiveEnvironment returns the single active environment.
func (s *Store) ActiveEnvironment(ctx context.Context) (*world.Environment, error) {
	return s.scanEnvironment(ctx,
		`SELECT `+envColumns+` FROM `+TableEnvironments+` WHERE is_active = 1`)
}

func (s *Store) scanEnvironment(ctx context.Context, query string, args ...any) (*world.Environment, error) {
	env := &world.Environment{}
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&env.UUID, &env.Name, &env.OverallDescription, &env.Atmosphere, &env.Lighting,
			&env.Sounds, &env.Smells, &env.IsActive, &env.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: environment", errno.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// ListEnvironments returns all environments, oldest first.
func (s *Store) ListEnvironments(ctx context.Context) ([]*world.Environment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+envColumns+` FROM `+TableEnvironments+` ORDER BY created_at ASC, uuid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvironments(rows)
}

func scanEnvironments(rows *sql.Rows) ([]*world.Environment, error) {
	var out []*world.Environment
	for rows.Next() {
		env := &world.Environment{}
		if err := rows.Scan(&env.UUID, &env.Name, &env.OverallDescription, &env.Atmosphere,
			&env.Lighting, &env.Sounds, &env.Smells, &env.IsActive, &env.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// ActivateEnvironment deactivates every environment and activates the
// target in one transaction. The partial unique index on is_active backs
// the single-active invariant against races.
func (s *Store) ActivateEnvironment(ctx context.Context, id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM `+TableEnvironments+` WHERE uuid = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: environment %s", errno.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+TableEnvironments+` SET is_active = 0 WHERE is_active = 1`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+TableEnvironments+` SET is_active = 1 WHERE uuid = ?`, id); err != nil {
			return fmt.Errorf("%w: activate environment %s: %v", errno.ErrConflict, id, err)
		}
		return nil
	})
}

// InsertDomain stores a domain.
func (s *Store) InsertDomain(ctx context.Context, dom *world.Domain) error {
	if dom.UUID == "" {
		dom.UUID = uuid.NewString()
	}
	if dom.CreatedAt.IsZero() {
		dom.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableDomains+` (uuid, name, description, default_environment_uuid, created_at) VALUES (?, ?, ?, ?, ?)`,
		dom.UUID, dom.Name, dom.Description, dom.DefaultEnvironmentUUID, dom.CreatedAt)
	return err
}

// GetDomainByName matches a domain name case-insensitively.
func (s *Store) GetDomainByName(ctx context.Context, name string) (*world.Domain, error) {
	dom := &world.Domain{}
	var defaultEnv sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, name, description, default_environment_uuid, created_at
		FROM `+TableDomains+` WHERE name = ? COLLATE NOCASE`, name).
		Scan(&dom.UUID, &dom.Name, &dom.Description, &defaultEnv, &dom.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: domain %q", errno.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	dom.DefaultEnvironmentUUID = defaultEnv.String
	return dom, nil
}

// ListDomains returns all domains, oldest first.
func (s *Store) ListDomains(ctx context.Context) ([]*world.Domain, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, name, description, default_environment_uuid, created_at
		FROM `+TableDomains+` ORDER BY created_at ASC, uuid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*world.Domain
	for rows.Next() {
		dom := &world.Domain{}
		var defaultEnv sql.NullString
		if err := rows.Scan(&dom.UUID, &dom.Name, &dom.Description, &defaultEnv, &dom.CreatedAt); err != nil {
			return nil, err
		}
		dom.DefaultEnvironmentUUID = defaultEnv.String
		out = append(out, dom)
	}
	return out, rows.Err()
}

// LinkDomainEnvironment records domain membership.
func (s *Store) LinkDomainEnvironment(ctx context.Context, domainUUID, envUUID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+TableDomainEnvironments+` (domain_uuid, environment_uuid) VALUES (?, ?)`,
		domainUUID, envUUID)
	return err
}

// DomainOfEnvironment returns a domain containing the environment.
func (s *Store) DomainOfEnvironment(ctx context.Context, envUUID string) (*world.Domain, error) {
	dom := &world.Domain{}
	var defaultEnv sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT d.uuid, d.name, d.description, d.default_environment_uuid, d.created_at
		FROM `+TableDomains+` d
		JOIN `+TableDomainEnvironments+` de ON de.domain_uuid = d.uuid
		WHERE de.environment_uuid = ? ORDER BY d.created_at ASC LIMIT 1`, envUUID).
		Scan(&dom.UUID, &dom.Name, &dom.Description, &defaultEnv, &dom.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no domain for environment %s", errno.ErrNotFound, envUUID)
	}
	if err != nil {
		return nil, err
	}
	dom.DefaultEnvironmentUUID = defaultEnv.String
	return dom, nil
}

// EnvironmentsInDomain returns the member environments, oldest first.
func (s *Store) EnvironmentsInDomain(ctx context.Context, domainUUID string) ([]*world.Environment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.uuid, e.name, e.overall_description, e.atmosphere, e.lighting, e.sounds, e.smells, e.is_active, e.created_at
		FROM `+TableEnvironments+` e
		JOIN `+TableDomainEnvironments+` de ON de.environment_uuid = e.uuid
		WHERE de.domain_uuid = ? ORDER BY e.created_at ASC, e.uuid ASC`, domainUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEnvironments(rows)
}
