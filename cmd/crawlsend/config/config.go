package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/crawlsend"
	"github.com/loykin/crawlsend/internal/common"
	"github.com/loykin/crawlsend/internal/httpc"
	"github.com/loykin/crawlsend/internal/probe"
	"github.com/loykin/crawlsend/internal/server"
	"github.com/loykin/crawlsend/internal/util"
	"gopkg.in/yaml.v3"
)

type CrawlerConfig struct {
	Executable     string `mapstructure:"executable" yaml:"executable"`
	ChromePath     string `mapstructure:"chrome_path" yaml:"chrome_path"`
	CustomHeaders  string `mapstructure:"custom_headers" yaml:"custom_headers"`
	ExtraArgs      string `mapstructure:"extra_args" yaml:"extra_args"`
	PostData       string `mapstructure:"post_data" yaml:"post_data"`
	AuthOnly       bool   `mapstructure:"auth_only" yaml:"auth_only"`
	OutputEncoding string `mapstructure:"output_encoding" yaml:"output_encoding"` // e.g. gbk for a crawler on a Chinese locale
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type ConfigDoc struct {
	Crawler    CrawlerConfig              `mapstructure:"crawler" yaml:"crawler"`
	Log        crawlsend.LogConfig        `mapstructure:"log" yaml:"log"`
	Logging    LoggingConfig              `mapstructure:"logging" yaml:"logging"`
	Store      crawlsend.StoreConfig      `mapstructure:"store" yaml:"store"`
	Supervisor crawlsend.SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Wait       probe.Config               `mapstructure:"wait" yaml:"wait"`
	Client     httpc.Config               `mapstructure:"client" yaml:"client"`
	Server     server.Config              `mapstructure:"server" yaml:"server"`
}

// Options returns the crawler options set in the file.
func (c *ConfigDoc) Options() crawlsend.Options {
	return crawlsend.Options{
		ExecutablePath: c.Crawler.Executable,
		ChromePath:     c.Crawler.ChromePath,
		CustomHeaders:  c.Crawler.CustomHeaders,
		ExtraArgs:      c.Crawler.ExtraArgs,
		PostData:       c.Crawler.PostData,
		AuthOnly:       c.Crawler.AuthOnly,
	}
}

// LauncherConfig maps the document onto crawlsend.Config.
func (c *ConfigDoc) LauncherConfig() crawlsend.Config {
	return crawlsend.Config{
		Options:        c.Options(),
		OutputEncoding: c.Crawler.OutputEncoding,
		Log:            c.Log,
		Store:          c.Store,
		Supervisor:     c.Supervisor,
	}
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", clean, err)
	}
	return nil
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	level := util.TrimAndLower(c.Logging.Level)
	switch level {
	case "error":
		return common.LogLevelError, nil
	case "warn", "warning":
		return common.LogLevelWarn, nil
	case "info", "":
		return common.LogLevelInfo, nil
	case "debug":
		return common.LogLevelDebug, nil
	default:
		return common.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *common.Logger
	format := util.TrimAndLower(c.Logging.Format)

	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	switch format {
	case "json":
		logger = common.NewJSONLogger(level)
	case "color", "colour":
		logger = common.NewColorLogger(level)
	case "text", "":
		if useColor {
			logger = common.NewColorLogger(level)
		} else {
			logger = common.NewLogger(level)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	if c.Logging.Color != nil {
		logger.EnableColor(*c.Logging.Color)
	}
	logger.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	common.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", util.TrimWithDefault(util.TrimAndLower(c.Logging.Level), "info"),
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}
