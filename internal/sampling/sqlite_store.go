package sampling

import (
	"database/sql"
	"encoding/json"

	_ "modernc.org/sqlite"

	"flowlab.dev/flowlab/internal/errors"
	"flowlab.dev/flowlab/internal/flowkey"
)

// SQLiteStore is a durable Store, persisting flow samples to a SQLite
// database rather than holding them only in memory — useful for replay
// runs large enough that the full sample set shouldn't live in process
// memory for the lifetime of an analytics session. Grounded on
// grimm-is-flywall/internal/analytics/store.go's Open/initSchema/
// modernc.org/sqlite idiom.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the sample database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.Inconsistent, "opening sampling sqlite store")
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS flow_samples (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		flow_key      INTEGER NOT NULL,
		arrival_ns    TEXT NOT NULL,
		delta         TEXT NOT NULL,
		miss_min      TEXT NOT NULL,
		miss_sim      TEXT NOT NULL,
		dst_country   TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return errors.Wrap(err, errors.Inconsistent, "creating flow_samples schema")
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Add persists sample and returns its assigned flow id.
func (s *SQLiteStore) Add(sample FlowSample) (int64, error) {
	arrival, err := json.Marshal(sample.ArrivalNS)
	if err != nil {
		return 0, err
	}
	delta, err := json.Marshal(sample.Delta)
	if err != nil {
		return 0, err
	}
	missMIN, err := json.Marshal(sample.MissMIN)
	if err != nil {
		return 0, err
	}
	missSim, err := json.Marshal(sample.MissSim)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT INTO flow_samples (flow_key, arrival_ns, delta, miss_min, miss_sim, dst_country) VALUES (?, ?, ?, ?, ?, ?)`,
		uint64(sample.FlowID), string(arrival), string(delta), string(missMIN), string(missSim), sample.DstCountry,
	)
	if err != nil {
		return 0, errors.Wrap(err, errors.Inconsistent, "inserting flow sample")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.Inconsistent, "reading inserted flow sample id")
	}
	// Sample ids are sqlite rowids, which start at 1; the Store contract
	// (ids matching FlowIDs()) holds regardless of the starting offset.
	return id, nil
}

func (s *SQLiteStore) NumFlows() int64 {
	var n int64
	row := s.db.QueryRow(`SELECT COUNT(*) FROM flow_samples`)
	if err := row.Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) FlowIDs() []int64 {
	rows, err := s.db.Query(`SELECT id FROM flow_samples ORDER BY id ASC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *SQLiteStore) Flow(id int64) (FlowSample, bool) {
	row := s.db.QueryRow(
		`SELECT flow_key, arrival_ns, delta, miss_min, miss_sim, dst_country FROM flow_samples WHERE id = ?`, id,
	)

	var flowKey uint64
	var arrival, delta, missMIN, missSim, dstCountry string
	if err := row.Scan(&flowKey, &arrival, &delta, &missMIN, &missSim, &dstCountry); err != nil {
		return FlowSample{}, false
	}

	sample := FlowSample{FlowID: flowkey.ID(flowKey), DstCountry: dstCountry}
	_ = json.Unmarshal([]byte(arrival), &sample.ArrivalNS)
	_ = json.Unmarshal([]byte(delta), &sample.Delta)
	_ = json.Unmarshal([]byte(missMIN), &sample.MissMIN)
	_ = json.Unmarshal([]byte(missSim), &sample.MissSim)
	return sample, true
}
