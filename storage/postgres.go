package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sakhatrans/routegraph/model"
)

// Connection pool tuning, populated from the DB_* options.
type PSQLConfig struct {
	PoolMax           int
	PoolMin           int
	IdleTimeout       time.Duration
	ConnectionTimeout time.Duration
	StatementTimeout  time.Duration
}

func DefaultPSQLConfig() PSQLConfig {
	return PSQLConfig{
		PoolMax:           10,
		PoolMin:           2,
		IdleTimeout:       5 * time.Minute,
		ConnectionTimeout: 10 * time.Second,
		StatementTimeout:  30 * time.Second,
	}
}

type PSQLStorage struct {
	db *sql.DB
}

const psqlSchema = `
CREATE TABLE IF NOT EXISTS dataset (
    version TEXT NOT NULL,
    hash TEXT NOT NULL,
    mode TEXT NOT NULL,
    quality INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    active BOOLEAN NOT NULL DEFAULT FALSE,
PRIMARY KEY (version)
);

CREATE TABLE IF NOT EXISTS stop (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    lat DOUBLE PRECISION,
    lon DOUBLE PRECISION,
    city_key TEXT NOT NULL,
    kind INTEGER NOT NULL,
    virtual BOOLEAN NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS route (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    number TEXT NOT NULL,
    kind INTEGER NOT NULL,
    stop_ids TEXT NOT NULL,
    base_fare DOUBLE PRECISION NOT NULL,
    operator TEXT NOT NULL,
    est_minutes DOUBLE PRECISION NOT NULL,
    virtual BOOLEAN NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS flight (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    from_stop TEXT NOT NULL,
    to_stop TEXT NOT NULL,
    departure TIMESTAMPTZ NOT NULL,
    arrival TIMESTAMPTZ NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    seats INTEGER NOT NULL,
    status TEXT NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS graph_kv (
    key TEXT NOT NULL,
    value BYTEA NOT NULL,
PRIMARY KEY (key)
);`

// lib/pq accepts both URL and key=value connection strings, but
// options can only be appended to the latter. URLs are converted
// first; appending to one corrupts its final parameter.
func psqlConnString(connStr string, conf PSQLConfig) (string, error) {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		kv, err := pq.ParseURL(connStr)
		if err != nil {
			return "", fmt.Errorf("parsing connection url: %w", err)
		}
		connStr = kv
	}

	if conf.StatementTimeout > 0 {
		connStr = fmt.Sprintf(
			"%s statement_timeout=%d connect_timeout=%d",
			connStr,
			conf.StatementTimeout.Milliseconds(),
			int(conf.ConnectionTimeout.Seconds()),
		)
	}
	return connStr, nil
}

func NewPSQLStorage(connStr string, createTables bool, cfg ...PSQLConfig) (*PSQLStorage, error) {
	conf := DefaultPSQLConfig()
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	connStr, err := psqlConnString(connStr, conf)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(conf.PoolMax)
	db.SetMaxIdleConns(conf.PoolMin)
	db.SetConnMaxIdleTime(conf.IdleTimeout)

	if createTables {
		if _, err := db.Exec(psqlSchema); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) Close() error {
	return s.db.Close()
}

func (s *PSQLStorage) SaveDataset(ds *model.Dataset) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(postgresDialect.rebind(`
INSERT INTO dataset (version, hash, mode, quality, created_at, active)
VALUES (?, ?, ?, ?, ?, ?)`),
			ds.Version, ds.Hash, ds.Mode.String(), ds.Quality, ds.CreatedAt, ds.Active,
		)
		if err != nil {
			return fmt.Errorf("inserting dataset: %w", err)
		}

		if err := upsertStopsTx(tx, postgresDialect, ds.Version, ds.Stops); err != nil {
			return err
		}
		if err := upsertRoutesTx(tx, postgresDialect, ds.Version, ds.Routes); err != nil {
			return err
		}
		return upsertFlightsTx(tx, postgresDialect, ds.Version, ds.Flights)
	})
}

func (s *PSQLStorage) GetLatestDataset() (*model.Dataset, error) {
	return getDataset(s.db, postgresDialect, "")
}

func (s *PSQLStorage) GetDataset(version string) (*model.Dataset, error) {
	return getDataset(s.db, postgresDialect, version)
}

func (s *PSQLStorage) SetDatasetActive(version string) error {
	return setDatasetActive(s.db, postgresDialect, version)
}

func (s *PSQLStorage) DeleteDataset(version string) error {
	return deleteDataset(s.db, postgresDialect, version)
}

func (s *PSQLStorage) SaveStops(version string, stops []*model.Stop) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, postgresDialect, version); err != nil {
			return err
		}
		return upsertStopsTx(tx, postgresDialect, version, stops)
	})
}

func (s *PSQLStorage) SaveRoutes(version string, routes []*model.Route) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, postgresDialect, version); err != nil {
			return err
		}
		return upsertRoutesTx(tx, postgresDialect, version, routes)
	})
}

func (s *PSQLStorage) SaveFlights(version string, flights []*model.Flight) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, postgresDialect, version); err != nil {
			return err
		}
		return upsertFlightsTx(tx, postgresDialect, version, flights)
	})
}

func (s *PSQLStorage) ListStops(version string, f EntityFilter) ([]*model.Stop, error) {
	return listStops(s.db, postgresDialect, version, f)
}

func (s *PSQLStorage) ListRoutes(version string, f EntityFilter) ([]*model.Route, error) {
	return listRoutes(s.db, postgresDialect, version, f)
}

func (s *PSQLStorage) ListFlights(version string, f EntityFilter) ([]*model.Flight, error) {
	return listFlights(s.db, postgresDialect, version, f)
}

func (s *PSQLStorage) CountFlights(version string, includeVirtual bool) (int, error) {
	return countFlights(s.db, postgresDialect, version, includeVirtual)
}

func (s *PSQLStorage) SaveGraph(version string, payload []byte) error {
	return graphKVSet(s.db, postgresDialect, fmt.Sprintf(GraphPayloadKeyFormat, version), payload)
}

func (s *PSQLStorage) GraphPayload(version string) ([]byte, error) {
	return graphKVGet(s.db, postgresDialect, fmt.Sprintf(GraphPayloadKeyFormat, version))
}

func (s *PSQLStorage) DeleteGraph(version string) error {
	return graphKVDelete(s.db, postgresDialect, fmt.Sprintf(GraphPayloadKeyFormat, version))
}

func (s *PSQLStorage) SetActiveGraphMetadata(md model.GraphMetadata) error {
	return setActiveGraphMetadata(s.db, postgresDialect, md)
}

func (s *PSQLStorage) GetGraphMetadata() (model.GraphMetadata, error) {
	buf, err := graphKVGet(s.db, postgresDialect, GraphMetadataKey)
	if err != nil {
		return model.GraphMetadata{}, err
	}
	var md model.GraphMetadata
	if err := json.Unmarshal(buf, &md); err != nil {
		return model.GraphMetadata{}, fmt.Errorf("unmarshaling graph metadata: %w", err)
	}
	return md, nil
}

func (s *PSQLStorage) ActiveGraphVersion() (string, error) {
	buf, err := graphKVGet(s.db, postgresDialect, GraphCurrentKey)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (s *PSQLStorage) Clear() error {
	for _, table := range []string{"flight", "route", "stop", "dataset", "graph_kv"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}
