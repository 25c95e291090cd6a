package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/crawlsend/internal/constants"
	"github.com/loykin/crawlsend/internal/request"
	"github.com/loykin/crawlsend/internal/sender"
	"github.com/loykin/crawlsend/internal/store"
	"github.com/loykin/crawlsend/internal/supervisor"
)

type submitResponse struct {
	ID   string   `json:"id"`
	Argv []string `json:"argv"`
}

// submitRun accepts a JSON request snapshot, or a raw HTTP request when the
// body is text/plain. The crawl is queued and 202 is returned at once.
func (s *Server) submitRun(c *gin.Context) {
	var (
		req *request.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), "text/plain") {
		req, err = request.ParseRaw(c.Request.Body, c.Query("scheme"))
	} else {
		req = &request.Request{}
		if err = c.ShouldBindJSON(req); err == nil {
			err = req.Normalize()
		}
	}
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.deps.Sender.Send(req)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, sender.ErrInvalidRequest) || errors.Is(err, sender.ErrNoRequest) {
			code = http.StatusBadRequest
		}
		abort(c, code, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, submitResponse{ID: run.ID, Argv: run.Argv})
}

func (s *Server) listRuns(c *gin.Context) {
	if s.deps.History == nil {
		abort(c, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	limit := constants.DefaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			abort(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.deps.History.ListRuns(c.Request.Context(), limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	if s.deps.History == nil {
		abort(c, http.StatusServiceUnavailable, "history store disabled")
		return
	}
	rec, err := s.deps.History.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		abort(c, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ProcessStats is resource usage of the running crawler.
type ProcessStats struct {
	RSS        uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

type statusResponse struct {
	State   supervisor.State      `json:"state"`
	Current *supervisor.RunResult `json:"current,omitempty"`
	Process *ProcessStats         `json:"process,omitempty"`
}

func (s *Server) status(c *gin.Context) {
	resp := statusResponse{State: s.deps.Status.State()}
	if cur, ok := s.deps.Status.Current(); ok {
		resp.Current = &cur
		if cur.PID > 0 {
			resp.Process = processStats(cur.PID)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// processStats returns nil when the process is gone or unreadable.
func processStats(pid int) *ProcessStats {
	p, err := process.NewProcess(int32(pid)) // #nosec G115 -- pids fit in int32
	if err != nil {
		return nil
	}
	stats := &ProcessStats{}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSS = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
