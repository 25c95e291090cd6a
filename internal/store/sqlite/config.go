package sqlite

import (
	"fmt"

	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/util"
)

// SQLite configuration constants
const (
	busyTimeoutMS = 5000 // 5 seconds in milliseconds
)

type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DSN returns the modernc.org/sqlite connection string for Path.
func (c *Config) DSN() string {
	path := util.TrimWithDefault(c.Path, constants.DefaultSQLitePath)
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeoutMS)
}
