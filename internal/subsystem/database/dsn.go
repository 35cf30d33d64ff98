package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// BuildDSN creates the driver-specific data source name.
//
//	mysql:    root:secret@tcp(localhost:3306)/mydb?charset=utf8mb4&parseTime=True&loc=Local
//	postgres: host=localhost port=5432 user=postgres password=secret dbname=mydb sslmode=disable
//	sqlite:   the file path, or :memory:
func BuildDSN(opts *Options) (string, error) {
	switch opts.Driver {
	case DriverMySQL:
		// @ / : in passwords would break DSN parsing without escaping.
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			opts.Username,
			url.QueryEscape(opts.Password),
			opts.Host,
			opts.Port,
			opts.Database,
		), nil
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			opts.Host,
			opts.Port,
			opts.Username,
			escapePostgresValue(opts.Password),
			opts.Database,
			opts.SSLMode,
		), nil
	case DriverSQLite:
		return opts.Path, nil
	default:
		return "", client.ErrUnsupportedDriver.WithMessagef("unsupported database driver %q", opts.Driver)
	}
}

// Dialector returns the gorm dialector for the configured driver.
func Dialector(opts *Options) (gorm.Dialector, error) {
	dsn, err := BuildDSN(opts)
	if err != nil {
		return nil, err
	}
	switch opts.Driver {
	case DriverMySQL:
		return mysqldriver.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// escapePostgresValue quotes values containing spaces, quotes or
// backslashes for the key=value DSN format.
func escapePostgresValue(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return "'" + escaped + "'"
}
