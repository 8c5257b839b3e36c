// Copyright 2023 The evr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb retrieves the timing-system inventory from the
// facility configuration database: which event receivers exist, where
// to reach them and which event mappings they should carry.
package conddb // import "github.com/aismail2/evr/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	host = envOr("EVRDB_HOST", "localhost")
	usr  = os.Getenv("EVRDB_USERNAME")
	pwd  = os.Getenv("EVRDB_PASSWORD")

	drvName = "mysql"
)

// Device is one event receiver row of the inventory.
type Device struct {
	Name  string
	Host  string
	Port  int
	Clock int // event clock, in MHz
}

// MapEntry is one event mapping row: event fires the pulse generators
// named by the action word.
type MapEntry struct {
	Event   uint8
	Actions uint16
}

// DB exposes convenience methods to retrieve the timing inventory
// from the facility database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the facility database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// Devices returns all event receivers of the inventory.
func (db *DB) Devices(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var devs []Device
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name, host, port, clock FROM devices ORDER BY name",
	)
	if err != nil {
		return devs, fmt.Errorf("conddb: could not query devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dev Device
		err = rows.Scan(&dev.Name, &dev.Host, &dev.Port, &dev.Clock)
		if err != nil {
			return devs, fmt.Errorf("conddb: could not scan device row: %w", err)
		}
		devs = append(devs, dev)
	}

	if err := rows.Err(); err != nil {
		return devs, fmt.Errorf("conddb: could not scan db for devices: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return devs, fmt.Errorf("conddb: context error while retrieving devices: %w", err)
	}

	return devs, nil
}

// MapEntries returns the event mappings of the named event receiver.
func (db *DB) MapEntries(ctx context.Context, device string) ([]MapEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var maps []MapEntry
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT evmaps.event, evmaps.actions FROM evmaps
JOIN devices ON devices.identifier=evmaps.device
WHERE devices.name=?
`,
		device,
	)
	if err != nil {
		return maps, fmt.Errorf("conddb: could not query event maps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MapEntry
		err = rows.Scan(&m.Event, &m.Actions)
		if err != nil {
			return maps, fmt.Errorf("conddb: could not scan event-map row: %w", err)
		}
		maps = append(maps, m)
	}

	if err := rows.Err(); err != nil {
		return maps, fmt.Errorf("conddb: could not scan db for event maps: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return maps, fmt.Errorf("conddb: context error while retrieving event maps: %w", err)
	}

	return maps, nil
}

func envOr(name, dflt string) string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return dflt
	}
	return v
}
