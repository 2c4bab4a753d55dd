package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sakhatrans/routegraph/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dataset (
    version TEXT NOT NULL,
    hash TEXT NOT NULL,
    mode TEXT NOT NULL,
    quality INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    active INTEGER NOT NULL DEFAULT 0,
PRIMARY KEY (version)
);

CREATE TABLE IF NOT EXISTS stop (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    lat REAL,
    lon REAL,
    city_key TEXT NOT NULL,
    kind INTEGER NOT NULL,
    virtual INTEGER NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS route (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    number TEXT NOT NULL,
    kind INTEGER NOT NULL,
    stop_ids TEXT NOT NULL,
    base_fare REAL NOT NULL,
    operator TEXT NOT NULL,
    est_minutes REAL NOT NULL,
    virtual INTEGER NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS flight (
    dataset_version TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    from_stop TEXT NOT NULL,
    to_stop TEXT NOT NULL,
    departure TIMESTAMP NOT NULL,
    arrival TIMESTAMP NOT NULL,
    price REAL NOT NULL,
    seats INTEGER NOT NULL,
    status TEXT NOT NULL,
PRIMARY KEY (dataset_version, id)
);

CREATE TABLE IF NOT EXISTS graph_kv (
    key TEXT NOT NULL,
    value BLOB NOT NULL,
PRIMARY KEY (key)
);`

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/routegraph.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Directory: directory},
		db:           db,
	}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) SaveDataset(ds *model.Dataset) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
INSERT INTO dataset (version, hash, mode, quality, created_at, active)
VALUES (?, ?, ?, ?, ?, ?)`,
		ds.Version, ds.Hash, ds.Mode.String(), ds.Quality, ds.CreatedAt, ds.Active,
	)
	if err != nil {
		return fmt.Errorf("inserting dataset: %w", err)
	}

	if err := upsertStopsTx(tx, sqliteDialect, ds.Version, ds.Stops); err != nil {
		return err
	}
	if err := upsertRoutesTx(tx, sqliteDialect, ds.Version, ds.Routes); err != nil {
		return err
	}
	if err := upsertFlightsTx(tx, sqliteDialect, ds.Version, ds.Flights); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) GetLatestDataset() (*model.Dataset, error) {
	return getDataset(s.db, sqliteDialect, "")
}

func (s *SQLiteStorage) GetDataset(version string) (*model.Dataset, error) {
	return getDataset(s.db, sqliteDialect, version)
}

func (s *SQLiteStorage) SetDatasetActive(version string) error {
	return setDatasetActive(s.db, sqliteDialect, version)
}

func (s *SQLiteStorage) DeleteDataset(version string) error {
	return deleteDataset(s.db, sqliteDialect, version)
}

func (s *SQLiteStorage) SaveStops(version string, stops []*model.Stop) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, sqliteDialect, version); err != nil {
			return err
		}
		return upsertStopsTx(tx, sqliteDialect, version, stops)
	})
}

func (s *SQLiteStorage) SaveRoutes(version string, routes []*model.Route) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, sqliteDialect, version); err != nil {
			return err
		}
		return upsertRoutesTx(tx, sqliteDialect, version, routes)
	})
}

func (s *SQLiteStorage) SaveFlights(version string, flights []*model.Flight) error {
	return inTx(s.db, func(tx *sql.Tx) error {
		if err := datasetExistsTx(tx, sqliteDialect, version); err != nil {
			return err
		}
		return upsertFlightsTx(tx, sqliteDialect, version, flights)
	})
}

func (s *SQLiteStorage) ListStops(version string, f EntityFilter) ([]*model.Stop, error) {
	return listStops(s.db, sqliteDialect, version, f)
}

func (s *SQLiteStorage) ListRoutes(version string, f EntityFilter) ([]*model.Route, error) {
	return listRoutes(s.db, sqliteDialect, version, f)
}

func (s *SQLiteStorage) ListFlights(version string, f EntityFilter) ([]*model.Flight, error) {
	return listFlights(s.db, sqliteDialect, version, f)
}

func (s *SQLiteStorage) CountFlights(version string, includeVirtual bool) (int, error) {
	return countFlights(s.db, sqliteDialect, version, includeVirtual)
}

func (s *SQLiteStorage) SaveGraph(version string, payload []byte) error {
	return graphKVSet(s.db, sqliteDialect, fmt.Sprintf(GraphPayloadKeyFormat, version), payload)
}

func (s *SQLiteStorage) GraphPayload(version string) ([]byte, error) {
	return graphKVGet(s.db, sqliteDialect, fmt.Sprintf(GraphPayloadKeyFormat, version))
}

func (s *SQLiteStorage) DeleteGraph(version string) error {
	return graphKVDelete(s.db, sqliteDialect, fmt.Sprintf(GraphPayloadKeyFormat, version))
}

func (s *SQLiteStorage) SetActiveGraphMetadata(md model.GraphMetadata) error {
	return setActiveGraphMetadata(s.db, sqliteDialect, md)
}

func (s *SQLiteStorage) GetGraphMetadata() (model.GraphMetadata, error) {
	buf, err := graphKVGet(s.db, sqliteDialect, GraphMetadataKey)
	if err != nil {
		return model.GraphMetadata{}, err
	}
	var md model.GraphMetadata
	if err := json.Unmarshal(buf, &md); err != nil {
		return model.GraphMetadata{}, fmt.Errorf("unmarshaling graph metadata: %w", err)
	}
	return md, nil
}

func (s *SQLiteStorage) ActiveGraphVersion() (string, error) {
	buf, err := graphKVGet(s.db, sqliteDialect, GraphCurrentKey)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (s *SQLiteStorage) Clear() error {
	for _, table := range []string{"flight", "route", "stop", "dataset", "graph_kv"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}
