package server

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostStats is the host section of /api/health. Fields stay zero when the
// platform does not expose them.
type HostStats struct {
	Hostname   string  `json:"hostname"`
	OS         string  `json:"os"`
	UptimeSec  uint64  `json:"uptime_sec"`
	MemUsage   float64 `json:"mem_usage"`
	MemUsed    string  `json:"mem_used"`
	MemTotal   string  `json:"mem_total"`
	Goroutines int     `json:"goroutines"`
}

// collectHostStats gathers a best-effort snapshot via gopsutil.
func collectHostStats() HostStats {
	st := HostStats{OS: runtime.GOOS, Goroutines: runtime.NumGoroutine()}
	if h, err := os.Hostname(); err == nil {
		st.Hostname = h
	}
	if info, err := host.Info(); err == nil {
		if info.Platform != "" {
			st.OS = info.Platform
			if info.PlatformVersion != "" {
				st.OS += " " + info.PlatformVersion
			}
		}
		st.UptimeSec = info.Uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemUsage = vm.UsedPercent
		st.MemUsed = humanize.Bytes(vm.Used)
		st.MemTotal = humanize.Bytes(vm.Total)
	}
	return st
}

// handleHealth reports liveness plus a few host figures for the panel.
//
//	GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"time":        time.Now().UTC(),
		"started":     humanize.Time(s.started),
		"uptime_sec":  int64(time.Since(s.started).Seconds()),
		"store":       s.storeDriver,
		"subscribers": s.hub.Subscribers(),
		"host":        collectHostStats(),
	})
}
