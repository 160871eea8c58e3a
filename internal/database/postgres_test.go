package database

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sharpms/dashboard/internal/config"
)

func TestApplyLimits(t *testing.T) {
	pc, err := pgxpool.ParseConfig("postgres://sharp:pw@localhost:5432/sharp")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	defaultMax := pc.MaxConns

	applyLimits(pc, config.PostgresConfig{MaxIdle: 2, ConnMaxLifetime: time.Minute})

	if pc.MaxConns != defaultMax {
		t.Fatalf("expected pgx default max conns to stay, got %d", pc.MaxConns)
	}
	if pc.MinConns != 2 || pc.MaxConnLifetime != time.Minute {
		t.Fatalf("unexpected limits min=%d lifetime=%s", pc.MinConns, pc.MaxConnLifetime)
	}
	if pc.ConnConfig.RuntimeParams["application_name"] != applicationName {
		t.Fatalf("expected application_name to be set")
	}
}
