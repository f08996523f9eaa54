package sqlitepersistence

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dogmatiq/marshalkit"
	"github.com/outreachkit/engage/persistence"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// dataStore is an implementation of persistence.DataStore for SQLite.
type dataStore struct {
	db     *sql.DB
	appKey string

	m       sync.RWMutex
	release func(string) error
}

func (ds *dataStore) LoadProcessInstance(
	ctx context.Context,
	ptype, key string,
) (persistence.ProcessInstance, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ProcessInstance{}, persistence.ErrDataStoreClosed
	}

	inst := persistence.ProcessInstance{
		ProcessType: ptype,
		BusinessKey: key,
	}

	row := ds.db.QueryRowContext(
		ctx,
		`SELECT
			instance_id,
			revision,
			terminal,
			media_type,
			data
		FROM process_instance
		WHERE app_key = ?
		AND process_type = ?
		AND business_key = ?`,
		ds.appKey,
		ptype,
		key,
	)

	err := scanInstance(row, &inst)
	if errors.Is(err, sql.ErrNoRows) {
		return inst, nil
	}

	return inst, err
}

func (ds *dataStore) LoadProcessInstanceByID(
	ctx context.Context,
	id string,
) (persistence.ProcessInstance, bool, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ProcessInstance{}, false, persistence.ErrDataStoreClosed
	}

	var inst persistence.ProcessInstance

	row := ds.db.QueryRowContext(
		ctx,
		`SELECT
			process_type,
			business_key,
			instance_id,
			revision,
			terminal,
			media_type,
			data
		FROM process_instance
		WHERE app_key = ?
		AND instance_id = ?`,
		ds.appKey,
		id,
	)

	var terminal int
	err := row.Scan(
		&inst.ProcessType,
		&inst.BusinessKey,
		&inst.InstanceID,
		&inst.Revision,
		&terminal,
		&inst.Packet.MediaType,
		&inst.Packet.Data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ProcessInstance{}, false, nil
	}
	if err != nil {
		return persistence.ProcessInstance{}, false, err
	}

	inst.Terminal = terminal != 0

	return inst, true, nil
}

func (ds *dataStore) LoadActiveProcessInstances(
	ctx context.Context,
) ([]persistence.ProcessInstance, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return nil, persistence.ErrDataStoreClosed
	}

	rows, err := ds.db.QueryContext(
		ctx,
		`SELECT
			process_type,
			business_key,
			instance_id,
			revision,
			media_type,
			data
		FROM process_instance
		WHERE app_key = ?
		AND terminal = 0`,
		ds.appKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var active []persistence.ProcessInstance

	for rows.Next() {
		var inst persistence.ProcessInstance

		if err := rows.Scan(
			&inst.ProcessType,
			&inst.BusinessKey,
			&inst.InstanceID,
			&inst.Revision,
			&inst.Packet.MediaType,
			&inst.Packet.Data,
		); err != nil {
			return nil, err
		}

		active = append(active, inst)
	}

	return active, rows.Err()
}

func (ds *dataStore) SaveProcessInstance(
	ctx context.Context,
	inst persistence.ProcessInstance,
) error {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	conflict := persistence.ConflictError{
		ProcessType: inst.ProcessType,
		BusinessKey: inst.BusinessKey,
		Revision:    inst.Revision,
	}

	if inst.Revision == 0 {
		_, err := ds.db.ExecContext(
			ctx,
			`INSERT INTO process_instance (
				app_key,
				process_type,
				business_key,
				instance_id,
				revision,
				terminal,
				media_type,
				data
			) VALUES (?, ?, ?, ?, 1, ?, ?, ?)`,
			ds.appKey,
			inst.ProcessType,
			inst.BusinessKey,
			inst.InstanceID,
			boolToInt(inst.Terminal),
			inst.Packet.MediaType,
			inst.Packet.Data,
		)
		if isConstraintViolation(err) {
			return conflict
		}

		return err
	}

	res, err := ds.db.ExecContext(
		ctx,
		`UPDATE process_instance SET
			instance_id = ?,
			revision = revision + 1,
			terminal = ?,
			media_type = ?,
			data = ?
		WHERE app_key = ?
		AND process_type = ?
		AND business_key = ?
		AND revision = ?
		AND terminal = 0`,
		inst.InstanceID,
		boolToInt(inst.Terminal),
		inst.Packet.MediaType,
		inst.Packet.Data,
		ds.appKey,
		inst.ProcessType,
		inst.BusinessKey,
		inst.Revision,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return conflict
	}

	return nil
}

func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	r := ds.release
	ds.db = nil
	ds.release = nil

	return r(ds.appKey)
}

// scanInstance scans an instance row selected with its key columns omitted.
func scanInstance(row *sql.Row, inst *persistence.ProcessInstance) error {
	var (
		terminal int
		packet   marshalkit.Packet
	)

	if err := row.Scan(
		&inst.InstanceID,
		&inst.Revision,
		&terminal,
		&packet.MediaType,
		&packet.Data,
	); err != nil {
		return err
	}

	inst.Terminal = terminal != 0
	inst.Packet = packet

	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}

// isConstraintViolation reports whether err is a primary-key or unique-index
// violation.
func isConstraintViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT,
			sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY,
			sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}

	return false
}
