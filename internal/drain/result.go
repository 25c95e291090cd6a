package drain

import (
	"strings"
	"sync"

	"github.com/loykin/crawlsend/internal/constants"
	"github.com/tidwall/gjson"
)

// Summary counts what crawlergo reported in its JSON result.
type Summary struct {
	Requests    int      `json:"requests"`
	AllRequests int      `json:"all_requests"`
	Domains     int      `json:"domains"`
	SubDomains  int      `json:"sub_domains"`
	DomainList  []string `json:"domain_list,omitempty"`
}

// ResultCollector watches crawler output for the mission complete marker and
// parses the JSON result that follows it. Lines that are not a result are
// ignored.
type ResultCollector struct {
	mu      sync.Mutex
	armed   bool
	summary *Summary
}

// NewResultCollector returns an empty collector.
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

// Observe is a LineObserver.
func (c *ResultCollector) Observe(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trimmed := strings.TrimSpace(line)
	if strings.Contains(trimmed, constants.MissionCompleteMarker) {
		c.armed = true
		return
	}
	if !c.armed || !gjson.Valid(trimmed) {
		return
	}
	res := gjson.Parse(trimmed)
	if !res.IsObject() || !res.Get("req_list").Exists() {
		return
	}

	s := &Summary{
		Requests:    int(res.Get("req_list.#").Int()),
		AllRequests: int(res.Get("all_req_list.#").Int()),
		Domains:     int(res.Get("all_domain_list.#").Int()),
		SubDomains:  int(res.Get("sub_domain_list.#").Int()),
	}
	for _, d := range res.Get("all_domain_list").Array() {
		s.DomainList = append(s.DomainList, d.String())
	}
	c.summary = s
	c.armed = false
}

// Summary returns the parsed result, or nil when none was seen.
func (c *ResultCollector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return nil
	}
	cp := *c.summary
	return &cp
}
