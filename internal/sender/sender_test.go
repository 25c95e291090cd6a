package sender

import (
	"testing"

	"github.com/loykin/crawlsend/internal/headers"
	"github.com/loykin/crawlsend/internal/logsink"
	"github.com/loykin/crawlsend/internal/request"
	"github.com/loykin/crawlsend/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	sink      *logsink.Memory
	submitted [][]string
	linesSeen []int
}

func (f *fakeSubmitter) Submit(argv []string) *supervisor.Run {
	f.submitted = append(f.submitted, argv)
	f.linesSeen = append(f.linesSeen, len(f.sink.Lines()))
	return &supervisor.Run{ID: "run-1", Argv: argv}
}

func sampleRequest() *request.Request {
	return &request.Request{
		Method: "GET",
		URL:    "http://testphp.vulnweb.com/",
		Headers: []headers.Header{
			{Name: "Host", Value: "testphp.vulnweb.com"},
			{Name: "Cookie", Value: "login=test"},
		},
	}
}

func TestSend_LogsCommandBeforeSubmit(t *testing.T) {
	sink := logsink.NewMemory()
	sub := &fakeSubmitter{sink: sink}
	s := New(Options{ExecutablePath: "/opt/crawlergo", ChromePath: "/usr/bin/chromium", CustomHeaders: "Cookie: login=admin"}, sub, sink)

	run, err := s.Send(sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, run)

	want := []string{
		"/opt/crawlergo", "-c", "/usr/bin/chromium",
		"--custom-headers", `"{\"Host\":\"testphp.vulnweb.com\",\"Cookie\":\"login=admin\"}"`,
		"http://testphp.vulnweb.com/",
	}
	require.Len(t, sub.submitted, 1)
	assert.Equal(t, want, sub.submitted[0])
	assert.Equal(t, []int{1}, sub.linesSeen)
	assert.Equal(t, []string{
		`[INFO] full command: /opt/crawlergo -c /usr/bin/chromium --custom-headers "{\"Host\":\"testphp.vulnweb.com\",\"Cookie\":\"login=admin\"}" http://testphp.vulnweb.com/`,
	}, sink.Lines())
}

func TestSend_Errors(t *testing.T) {
	sink := logsink.NewMemory()
	sub := &fakeSubmitter{sink: sink}
	s := New(Options{}, sub, sink)

	_, err := s.Send(nil)
	assert.ErrorIs(t, err, ErrNoRequest)

	_, err = s.Send(&request.Request{Method: "GET", URL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Empty(t, sub.submitted)
	assert.Empty(t, sink.Lines())
}

func TestPrepare_AuthOnly(t *testing.T) {
	s := New(Options{ExecutablePath: "crawlergo", AuthOnly: true}, nil, nil)
	p, err := s.Prepare(sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"Cookie":"login=test"}`, p.Headers.JSON())
}

func TestPrepare_DefaultsAndTrims(t *testing.T) {
	s := New(Options{ExtraArgs: "  -t 5  ", PostData: " "}, nil, nil)
	p, err := s.Prepare(&request.Request{URL: "http://a/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"crawlergo", "-t", "5", "http://a/"}, p.Argv)
	assert.Equal(t, "crawlergo -t 5 http://a/", p.Display())
}

func TestSetOptions(t *testing.T) {
	s := New(Options{ExecutablePath: "a"}, nil, nil)
	s.SetOptions(Options{ExecutablePath: "b"})
	assert.Equal(t, "b", s.Options().ExecutablePath)
}
