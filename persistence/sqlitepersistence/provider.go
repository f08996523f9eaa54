// Package sqlitepersistence implements the persistence abstraction using
// SQLite, via the modernc.org pure-Go driver.
package sqlitepersistence

import (
	"context"
	"database/sql"
	"sync"

	"github.com/outreachkit/engage/persistence"
	_ "modernc.org/sqlite"
)

// Provider is an implementation of persistence.Provider for SQLite that uses
// an existing open database.
//
// The schema must already exist, see CreateSchema().
type Provider struct {
	provider

	// DB is the SQLite database to use.
	DB *sql.DB
}

// Open returns a data-store for a specific application.
//
// k is the identity key of the application.
//
// Data stores are opened for exclusive use. If another engine instance has
// already opened this application's data-store, ErrDataStoreLocked is
// returned.
func (p *Provider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.open(
		ctx,
		k,
		func(context.Context) (*sql.DB, error) {
			return p.DB, nil
		},
		func(*sql.DB) error {
			// Don't actually close the database, since we didn't open it.
			return nil
		},
	)
}

// FileProvider is an implementation of persistence.Provider for SQLite that
// opens a database file, creating the schema if necessary.
type FileProvider struct {
	provider

	// Path is the path to the SQLite database to open or create.
	Path string
}

// Open returns a data-store for a specific application.
//
// k is the identity key of the application.
//
// Data stores are opened for exclusive use. If another engine instance has
// already opened this application's data-store, ErrDataStoreLocked is
// returned.
func (p *FileProvider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.open(
		ctx,
		k,
		func(ctx context.Context) (*sql.DB, error) {
			db, err := Open(p.Path)
			if err != nil {
				return nil, err
			}

			if err := CreateSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}

			return db, nil
		},
		func(db *sql.DB) error {
			return db.Close()
		},
	)
}

// Open opens the SQLite database at the given path with the settings expected
// by the data-store.
func Open(path string) (*sql.DB, error) {
	return sql.Open(
		"sqlite",
		path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL",
	)
}

// provider is the common implementation of Provider and FileProvider.
type provider struct {
	m     sync.Mutex
	db    *sql.DB
	close func(db *sql.DB) error
	apps  map[string]struct{}
}

// open returns a data-store for a specific application.
func (p *provider) open(
	ctx context.Context,
	k string,
	open func(ctx context.Context) (*sql.DB, error),
	close func(db *sql.DB) error,
) (persistence.DataStore, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.db == nil {
		db, err := open(ctx)
		if err != nil {
			return nil, err
		}

		p.db = db
		p.close = close
	}

	if p.apps == nil {
		p.apps = map[string]struct{}{}
	} else if _, ok := p.apps[k]; ok {
		return nil, persistence.ErrDataStoreLocked
	}

	p.apps[k] = struct{}{}

	return &dataStore{
		db:      p.db,
		appKey:  k,
		release: p.release,
	}, nil
}

// release releases the data-store for the given application key, closing the
// database once no data-stores remain open.
func (p *provider) release(k string) error {
	p.m.Lock()
	defer p.m.Unlock()

	delete(p.apps, k)

	if len(p.apps) > 0 {
		return nil
	}

	db := p.db
	close := p.close
	p.db = nil
	p.close = nil

	if close != nil {
		return close(db)
	}

	return nil
}
