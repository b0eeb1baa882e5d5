package world

import "context"

// Repository is the persistence contract for environments and domains.
type Repository interface {
	// InsertEnvironment stores an environment and fills UUID/CreatedAt.
	InsertEnvironment(ctx context.Context, env *Environment) error

	// GetEnvironment returns an environment by uuid or errno.ErrNotFound.
	GetEnvironment(ctx context.Context, uuid string) (*Environment, error)

	// GetEnvironmentByName matches a name case-insensitively.
	GetEnvironmentByName(ctx context.Context, name string) (*Environment, error)

	// ListEnvironments returns all environments, oldest first.
	ListEnvironments(ctx context.Context) ([]*Environment, error)

	// ActiveEnvironment returns the single active environment or
	// errno.ErrNotFound when none is active.
	ActiveEnvironment(ctx context.Context) (*Environment, error)

	// ActivateEnvironment deactivates every environment and activates the
	// target in one transaction.
	ActivateEnvironment(ctx context.Context, uuid string) error

	// InsertDomain stores a domain and fills UUID/CreatedAt.
	InsertDomain(ctx context.Context, dom *Domain) error

	// GetDomainByName matches a domain name case-insensitively.
	GetDomainByName(ctx context.Context, name string) (*Domain, error)

	// ListDomains returns all domains, oldest first.
	ListDomains(ctx context.Context) ([]*Domain, error)

	// LinkDomainEnvironment records domain membership.
	LinkDomainEnvironment(ctx context.Context, domainUUID, envUUID string) error

	// DomainOfEnvironment returns a domain containing the environment, or
	// errno.ErrNotFound.
	DomainOfEnvironment(ctx context.Context, envUUID string) (*Domain, error)

	// EnvironmentsInDomain returns the member environments, oldest first.
	EnvironmentsInDomain(ctx context.Context, domainUUID string) ([]*Environment, error)
}
