package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakhatrans/routegraph/model"
)

// Query helpers shared by the sqlite and postgres backends. Queries
// are written with ? placeholders; the postgres dialect rewrites them
// to $n form.

type dialect int

const (
	sqliteDialect dialect = iota
	postgresDialect
)

func (d dialect) rebind(query string) string {
	if d == sqliteDialect {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Bulk upserts are scoped to an existing dataset version; writing to
// an unknown one is the caller's bug, not a fresh dataset.
func datasetExistsTx(tx *sql.Tx, d dialect, version string) error {
	var v string
	err := tx.QueryRow(d.rebind(`SELECT version FROM dataset WHERE version = ?`), version).Scan(&v)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying dataset: %w", err)
	}
	return nil
}

func upsertStopsTx(tx *sql.Tx, d dialect, version string, stops []*model.Stop) error {
	stmt, err := tx.Prepare(d.rebind(`
INSERT INTO stop (dataset_version, id, name, lat, lon, city_key, kind, virtual)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (dataset_version, id) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("preparing stop insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stops {
		_, err := stmt.Exec(version, st.ID, st.Name, st.Lat, st.Lon, st.CityKey, int(st.Kind), st.Virtual)
		if err != nil {
			return fmt.Errorf("inserting stop %s: %w", st.ID, err)
		}
	}
	return nil
}

func upsertRoutesTx(tx *sql.Tx, d dialect, version string, routes []*model.Route) error {
	stmt, err := tx.Prepare(d.rebind(`
INSERT INTO route (dataset_version, id, number, kind, stop_ids, base_fare, operator, est_minutes, virtual)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (dataset_version, id) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("preparing route insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range routes {
		stopIDs, err := json.Marshal(r.StopIDs)
		if err != nil {
			return fmt.Errorf("marshaling stop ids for route %s: %w", r.ID, err)
		}
		_, err = stmt.Exec(version, r.ID, r.Number, int(r.Kind), string(stopIDs), r.BaseFare, r.Operator, r.EstMinutes, r.Virtual)
		if err != nil {
			return fmt.Errorf("inserting route %s: %w", r.ID, err)
		}
	}
	return nil
}

func upsertFlightsTx(tx *sql.Tx, d dialect, version string, flights []*model.Flight) error {
	stmt, err := tx.Prepare(d.rebind(`
INSERT INTO flight (dataset_version, id, route_id, from_stop, to_stop, departure, arrival, price, seats, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (dataset_version, id) DO NOTHING`))
	if err != nil {
		return fmt.Errorf("preparing flight insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range flights {
		_, err := stmt.Exec(version, f.ID, f.RouteID, f.FromStop, f.ToStop, f.Departure, f.Arrival, f.Price, f.Seats, string(f.Status))
		if err != nil {
			return fmt.Errorf("inserting flight %s: %w", f.ID, err)
		}
	}
	return nil
}

// Loads a dataset header and all of its entities. An empty version
// selects the most recently created dataset.
func getDataset(db *sql.DB, d dialect, version string) (*model.Dataset, error) {
	query := `
SELECT version, hash, mode, quality, created_at, active
FROM dataset`
	args := []interface{}{}
	if version != "" {
		query += ` WHERE version = ?`
		args = append(args, version)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	ds := &model.Dataset{}
	var mode string
	err := db.QueryRow(d.rebind(query), args...).Scan(
		&ds.Version, &ds.Hash, &mode, &ds.Quality, &ds.CreatedAt, &ds.Active,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dataset: %w", err)
	}
	ds.Mode = parseSourceMode(mode)

	if ds.Stops, err = listStops(db, d, ds.Version, EntityFilter{}); err != nil {
		return nil, err
	}
	if ds.Routes, err = listRoutes(db, d, ds.Version, EntityFilter{}); err != nil {
		return nil, err
	}
	if ds.Flights, err = listFlights(db, d, ds.Version, EntityFilter{}); err != nil {
		return nil, err
	}

	return ds, nil
}

func parseSourceMode(s string) model.SourceMode {
	switch s {
	case "real":
		return model.SourceModeReal
	case "recovery":
		return model.SourceModeRecovery
	case "mock":
		return model.SourceModeMock
	}
	return model.SourceModeUnknown
}

func setDatasetActive(db *sql.DB, d dialect, version string) error {
	return inTx(db, func(tx *sql.Tx) error {
		res, err := tx.Exec(d.rebind(`UPDATE dataset SET active = ? WHERE version = ?`), true, version)
		if err != nil {
			return fmt.Errorf("activating dataset: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(d.rebind(`UPDATE dataset SET active = ? WHERE version != ?`), false, version)
		if err != nil {
			return fmt.Errorf("deactivating datasets: %w", err)
		}
		return nil
	})
}

func deleteDataset(db *sql.DB, d dialect, version string) error {
	return inTx(db, func(tx *sql.Tx) error {
		res, err := tx.Exec(d.rebind(`DELETE FROM dataset WHERE version = ?`), version)
		if err != nil {
			return fmt.Errorf("deleting dataset: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		for _, table := range []string{"stop", "route", "flight"} {
			_, err := tx.Exec(d.rebind(`DELETE FROM `+table+` WHERE dataset_version = ?`), version)
			if err != nil {
				return fmt.Errorf("deleting %ss: %w", table, err)
			}
		}
		return nil
	})
}

func virtualClause(f EntityFilter, column string) (string, []interface{}) {
	if f.Virtual == nil {
		return "", nil
	}
	return fmt.Sprintf(" AND %s = ?", column), []interface{}{*f.Virtual}
}

func listStops(db *sql.DB, d dialect, version string, f EntityFilter) ([]*model.Stop, error) {
	query := `
SELECT id, name, lat, lon, city_key, kind, virtual
FROM stop
WHERE dataset_version = ?`
	args := []interface{}{version}
	clause, extra := virtualClause(f, "virtual")
	query += clause + ` ORDER BY id`
	args = append(args, extra...)

	rows, err := db.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		st := &model.Stop{}
		var kind int
		if err := rows.Scan(&st.ID, &st.Name, &st.Lat, &st.Lon, &st.CityKey, &kind, &st.Virtual); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		st.Kind = model.StopKind(kind)
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

func listRoutes(db *sql.DB, d dialect, version string, f EntityFilter) ([]*model.Route, error) {
	query := `
SELECT id, number, kind, stop_ids, base_fare, operator, est_minutes, virtual
FROM route
WHERE dataset_version = ?`
	args := []interface{}{version}
	clause, extra := virtualClause(f, "virtual")
	query += clause + ` ORDER BY id`
	args = append(args, extra...)

	rows, err := db.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		r := &model.Route{}
		var kind int
		var stopIDs string
		if err := rows.Scan(&r.ID, &r.Number, &kind, &stopIDs, &r.BaseFare, &r.Operator, &r.EstMinutes, &r.Virtual); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		r.Kind = model.TransportKind(kind)
		if err := json.Unmarshal([]byte(stopIDs), &r.StopIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling stop ids for route %s: %w", r.ID, err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

func listFlights(db *sql.DB, d dialect, version string, f EntityFilter) ([]*model.Flight, error) {
	// A flight is virtual when its route is. The flag lives on the
	// route row only.
	query := `
SELECT f.id, f.route_id, f.from_stop, f.to_stop, f.departure, f.arrival, f.price, f.seats, f.status
FROM flight f
LEFT JOIN route r ON r.dataset_version = f.dataset_version AND r.id = f.route_id
WHERE f.dataset_version = ?`
	args := []interface{}{version}
	clause, extra := virtualClause(f, "COALESCE(r.virtual, FALSE)")
	query += clause + ` ORDER BY f.id`
	args = append(args, extra...)

	rows, err := db.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying flights: %w", err)
	}
	defer rows.Close()

	flights := []*model.Flight{}
	for rows.Next() {
		fl := &model.Flight{}
		var status string
		err := rows.Scan(
			&fl.ID, &fl.RouteID, &fl.FromStop, &fl.ToStop,
			&fl.Departure, &fl.Arrival, &fl.Price, &fl.Seats, &status,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning flight: %w", err)
		}
		fl.Status = model.FlightStatus(status)
		flights = append(flights, fl)
	}
	return flights, rows.Err()
}

func countFlights(db *sql.DB, d dialect, version string, includeVirtual bool) (int, error) {
	f := EntityFilter{}
	if !includeVirtual {
		f = Real()
	}
	flights, err := listFlights(db, d, version, f)
	if err != nil {
		return 0, err
	}
	return len(flights), nil
}

func graphKVGet(db *sql.DB, d dialect, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRow(d.rebind(`SELECT value FROM graph_kv WHERE key = ?`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying graph kv: %w", err)
	}
	return value, nil
}

func graphKVDelete(db *sql.DB, d dialect, key string) error {
	res, err := db.Exec(d.rebind(`DELETE FROM graph_kv WHERE key = ?`), key)
	if err != nil {
		return fmt.Errorf("deleting graph kv: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func graphKVSet(db *sql.DB, d dialect, key string, value []byte) error {
	_, err := db.Exec(d.rebind(`
INSERT INTO graph_kv (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, value)
	if err != nil {
		return fmt.Errorf("writing graph kv: %w", err)
	}
	return nil
}

func setActiveGraphMetadata(db *sql.DB, d dialect, md model.GraphMetadata) error {
	buf, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshaling graph metadata: %w", err)
	}
	if err := graphKVSet(db, d, GraphMetadataKey, buf); err != nil {
		return err
	}
	return graphKVSet(db, d, GraphCurrentKey, []byte(md.DatasetVersion))
}
