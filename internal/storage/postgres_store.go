package storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/fleet-tracking/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveFix(fix models.Fix) error {
	_, err := p.db.Exec(`INSERT INTO location_history(entity_id, lat, lon, speed_mps, heading, status, recorded_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		fix.EntityID, fix.Loc.Lat, fix.Loc.Lon, fix.SpeedMps, fix.Heading, fix.Status, fix.Timestamp)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
