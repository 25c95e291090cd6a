package store

import (
	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/store/postgresql"
	"github.com/loykin/crawlsend/internal/store/sqlite"
)

const (
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"
)

// TableNames allows overriding the table names, e.g. to share a database.
type TableNames struct {
	Settings string `mapstructure:"settings" yaml:"settings"`
	Runs     string `mapstructure:"runs" yaml:"runs"`
}

func (t TableNames) withDefaults() TableNames {
	if t.Settings == "" {
		t.Settings = constants.DefaultSettingsTable
	}
	if t.Runs == "" {
		t.Runs = constants.DefaultRunsTable
	}
	return t
}

// Config selects and configures the store driver.
type Config struct {
	Disabled    bool              `mapstructure:"disabled" yaml:"disabled"`
	Type        string            `mapstructure:"type" yaml:"type"`
	TablePrefix string            `mapstructure:"table_prefix" yaml:"table_prefix"`
	TableNames  TableNames        `mapstructure:"table_names" yaml:"table_names"`
	SQLite      sqlite.Config     `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres    postgresql.Config `mapstructure:"postgres" yaml:"postgres"`
}

func (c Config) tables() TableNames {
	t := c.TableNames
	if c.TablePrefix != "" {
		if t.Settings == "" {
			t.Settings = c.TablePrefix + "_" + constants.DefaultSettingsTable
		}
		if t.Runs == "" {
			t.Runs = c.TablePrefix + "_" + constants.DefaultRunsTable
		}
	}
	return t.withDefaults()
}
