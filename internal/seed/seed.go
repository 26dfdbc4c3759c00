package seed

import (
	"context"
	"fmt"

	"github.com/Simplici0/labsite/internal/accounts"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way. A configured admin email that
// already belongs to a customer is promoted; its password is left as is.
func Run(ctx context.Context, users *accounts.Store, cfg Config) (Stats, error) {
	stats := Stats{}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return stats, nil
	}

	created, err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return Stats{}, fmt.Errorf("seed admin user: %w", err)
	}
	if created {
		stats.Inserts++
		return stats, nil
	}

	promoted, err := users.SetRole(ctx, cfg.AdminEmail, accounts.RoleAdmin)
	if err != nil {
		return Stats{}, fmt.Errorf("promote admin user: %w", err)
	}
	if promoted {
		stats.Updates++
	}
	return stats, nil
}
