// Package drain forwards a running crawler's combined output to the run log.
package drain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/loykin/crawlsend/internal/logsink"
)

// LineObserver sees every line after it has been written to the sink.
type LineObserver func(line string)

// Lines yields r line by line until EOF. Lines have no length limit, so a
// crawl result printed on one line arrives whole. The trailing "\n" or
// "\r\n" is dropped and a final unterminated line is still yielded. A read
// failure is yielded once with an empty line and ends the sequence.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReaderSize(r, 64*1024)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
				if !yield(line, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

// Drain copies every line of r to sink in order, then notifies observers.
// It returns when r reaches EOF or fails. A failure is logged to the sink as
// "[ERROR] output read error: ..." and returned after the rest of r has been
// discarded, so the writing process never sees a closed pipe.
func Drain(r io.Reader, sink logsink.Sink, observers ...LineObserver) error {
	for line, err := range Lines(r) {
		if err != nil {
			sink.Error(fmt.Sprintf("output read error: %v", err))
			_, _ = io.Copy(io.Discard, r)
			return err
		}
		sink.Line(line)
		for _, obs := range observers {
			obs(line)
		}
	}
	return nil
}
