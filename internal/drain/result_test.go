package drain

import (
	"strings"
	"testing"

	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const crawlergoOutput = `Crawling GET http://testphp.vulnweb.com/
Crawling GET http://testphp.vulnweb.com/artists.php
{"req_list": "not a result yet"}
--[Mission Complete]--
{"req_list":[{"url":"http://testphp.vulnweb.com/","method":"GET"},{"url":"http://testphp.vulnweb.com/login.php","method":"POST"}],"all_req_list":[{"url":"a"},{"url":"b"},{"url":"c"}],"all_domain_list":["testphp.vulnweb.com","vulnweb.com"],"sub_domain_list":["testphp.vulnweb.com"]}
`

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	require.NoError(t, Drain(strings.NewReader(crawlergoOutput), logsink.Discard, c.Observe))

	s := c.Summary()
	require.NotNil(t, s)
	assert.Equal(t, 2, s.Requests)
	assert.Equal(t, 3, s.AllRequests)
	assert.Equal(t, 2, s.Domains)
	assert.Equal(t, 1, s.SubDomains)
	assert.Equal(t, []string{"testphp.vulnweb.com", "vulnweb.com"}, s.DomainList)
}

func TestResultCollector_IgnoresNonResults(t *testing.T) {
	c := NewResultCollector()
	for _, l := range []string{
		`{"req_list":[]}`,
		"--[Mission Complete]--",
		"not json",
		`[1,2,3]`,
		`{"other":1}`,
	} {
		c.Observe(l)
	}
	assert.Nil(t, c.Summary())
}
