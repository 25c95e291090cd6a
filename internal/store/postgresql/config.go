package postgresql

import (
	"fmt"
	"net/url"

	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/util"
)

type Config struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// BuildDSN prefers an explicit DSN; otherwise it builds one from the
// components when a host is set. It returns "" when neither is configured.
func (p *Config) BuildDSN() string {
	if dsn, ok := util.TrimEmptyCheck(p.DSN); ok {
		return dsn
	}
	host, ok := util.TrimEmptyCheck(p.Host)
	if !ok {
		return ""
	}
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(util.TrimWithDefault(p.User, ""), p.Password),
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + util.TrimWithDefault(p.DBName, ""),
		RawQuery: "sslmode=" + util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode),
	}
	return u.String()
}
