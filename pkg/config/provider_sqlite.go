package config

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/chrissnell/quasar/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider, bringing the
// schema up to date first
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := MigrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewSchemaMigrator returns a migrator over the embedded configuration schema
func NewSchemaMigrator(db *sql.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationFS, "migrations", "schema_migrations"))
}

// MigrateSchema applies the embedded configuration schema migrations to db
func MigrateSchema(db *sql.DB) error {
	if err := NewSchemaMigrator(db).MigrateUp(); err != nil {
		return fmt.Errorf("failed to migrate configuration schema: %w", err)
	}
	return nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	logging, err := s.GetLogging()
	if err != nil {
		return nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	config.Logging = *logging

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetLogging returns the logging configuration; a missing row yields defaults
func (s *SQLiteProvider) GetLogging() (*LoggingData, error) {
	var (
		logging                     LoggingData
		debug, compress             int
		file                        sql.NullString
		maxSize, maxBackups, maxAge sql.NullInt64
	)

	err := s.db.QueryRow(`
		SELECT debug, file, max_size_mb, max_backups, max_age_days, compress
		FROM logging WHERE id = 1
	`).Scan(&debug, &file, &maxSize, &maxBackups, &maxAge, &compress)
	if err == sql.ErrNoRows {
		return &logging, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query logging config: %w", err)
	}

	logging.Debug = debug != 0
	logging.File = file.String
	logging.MaxSizeMB = int(maxSize.Int64)
	logging.MaxBackups = int(maxBackups.Int64)
	logging.MaxAgeDays = int(maxAge.Int64)
	logging.Compress = compress != 0

	return &logging, nil
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`
		SELECT type, cert, key, port, listen_addr, cors_origins, grpc_health, auth_token
		FROM controllers
		ORDER BY type DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var (
			controllerType                                string
			cert, key, listenAddr, corsOrigins, authToken sql.NullString
			port                                          sql.NullInt64
			grpcHealth                                    int
		)

		if err := rows.Scan(&controllerType, &cert, &key, &port, &listenAddr, &corsOrigins, &grpcHealth, &authToken); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		controller := ControllerData{Type: controllerType}
		switch controllerType {
		case ControllerTypeREST:
			controller.RESTServer = &RESTServerData{
				Cert:        cert.String,
				Key:         key.String,
				Port:        int(port.Int64),
				ListenAddr:  listenAddr.String,
				CORSOrigins: splitList(corsOrigins.String),
				GRPCHealth:  grpcHealth != 0,
			}
		case ControllerTypeManagement:
			controller.ManagementAPI = &ManagementAPIData{
				Cert:       cert.String,
				Key:        key.String,
				Port:       int(port.Int64),
				ListenAddr: listenAddr.String,
				AuthToken:  authToken.String,
			}
		}
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false since SQLite provider supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	if err := configData.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM controllers`); err != nil {
		return fmt.Errorf("failed to clear controllers: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM logging`); err != nil {
		return fmt.Errorf("failed to clear logging config: %w", err)
	}

	l := configData.Logging
	_, err = tx.Exec(`
		INSERT INTO logging (id, debug, file, max_size_mb, max_backups, max_age_days, compress)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`, boolToInt(l.Debug), nullString(l.File), l.MaxSizeMB, l.MaxBackups, l.MaxAgeDays, boolToInt(l.Compress))
	if err != nil {
		return fmt.Errorf("failed to insert logging config: %w", err)
	}

	for _, controller := range configData.Controllers {
		if err := insertController(tx, &controller); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit configuration: %w", err)
	}
	return nil
}

// UpdateController replaces the stored configuration of one controller
func (s *SQLiteProvider) UpdateController(controllerType string, controller *ControllerData) error {
	if controller == nil || controller.Type != controllerType {
		return fmt.Errorf("controller data does not describe a %q controller", controllerType)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM controllers WHERE type = ?`, controllerType)
	if err != nil {
		return fmt.Errorf("failed to delete existing controller: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("controller %s not found", controllerType)
	}

	if err := insertController(tx, controller); err != nil {
		return err
	}

	return tx.Commit()
}

func insertController(tx *sql.Tx, controller *ControllerData) error {
	const query = `
		INSERT INTO controllers (type, cert, key, port, listen_addr, cors_origins, grpc_health, auth_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var err error
	switch controller.Type {
	case ControllerTypeREST:
		r := controller.RESTServer
		_, err = tx.Exec(query, controller.Type, nullString(r.Cert), nullString(r.Key), r.Port,
			nullString(r.ListenAddr), nullString(strings.Join(r.CORSOrigins, ",")), boolToInt(r.GRPCHealth), nil)
	case ControllerTypeManagement:
		m := controller.ManagementAPI
		_, err = tx.Exec(query, controller.Type, nullString(m.Cert), nullString(m.Key), m.Port,
			nullString(m.ListenAddr), nil, 0, nullString(m.AuthToken))
	default:
		return fmt.Errorf("unknown controller type: %s", controller.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s controller: %w", controller.Type, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
