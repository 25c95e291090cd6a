// Package command assembles the crawlergo command line.
package command

import (
	"strings"

	"github.com/loykin/crawlsend/internal/argv"
	"github.com/loykin/crawlsend/internal/constants"
)

// Options are the operator controlled parts of the command line.
type Options struct {
	ExecutablePath string
	ChromePath     string
	ExtraArgs      string
	PostData       string
}

// Build returns the argv for one crawl of url. The order is fixed: executable,
// extra arguments, chrome path, custom headers and finally the url.
//
// PostData adds "-d <data>" right before the url. It is off unless the
// operator sets it, so the default command line carries only the tokens
// above.
//
// headerJSON is the embedded header form; it is skipped when it is empty or
// "{}". The url is appended as is, it is never flag prefixed.
func Build(opts Options, headerJSON, url string) []string {
	cmd := []string{QuotePath(strings.TrimSpace(opts.ExecutablePath))}

	if extra := strings.TrimSpace(opts.ExtraArgs); extra != "" {
		cmd = append(cmd, argv.Tokenize(extra)...)
	}

	cmd = addParam(cmd, constants.FlagChromePath, strings.TrimSpace(opts.ChromePath))

	if h := strings.TrimSpace(headerJSON); h != "" && h != constants.EmptyHeaderJSON {
		cmd = append(cmd, constants.FlagCustomHeaders, `"`+h+`"`)
	}

	cmd = addParam(cmd, constants.FlagPostData, strings.TrimSpace(opts.PostData))

	return append(cmd, url)
}

// QuotePath wraps path in double quotes when it contains a space.
func QuotePath(path string) string {
	if strings.Contains(path, " ") {
		return `"` + path + `"`
	}
	return path
}

// Display renders argv the way it is written to the run log.
func Display(argv []string) string {
	return strings.Join(argv, " ")
}

func addParam(cmd []string, flag, value string) []string {
	if value == "" {
		return cmd
	}
	return append(cmd, flag, value)
}
