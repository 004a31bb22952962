package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

// OpsHandler serves the health check and the server info endpoint.
//
// Routes handled:
// - GET /api/public/healthcheck -> Healthcheck
// - GET /api/server_info        -> ServerInfo (requires a session)
type OpsHandler struct {
	startedAt time.Time
	now       func() time.Time
}

// NewOpsHandler creates an OpsHandler whose uptime counts from startedAt.
func NewOpsHandler(startedAt time.Time) *OpsHandler {
	return &OpsHandler{
		startedAt: startedAt,
		now:       time.Now,
	}
}

// Healthcheck reports that the process is serving.
func (h *OpsHandler) Healthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ServerInfo describes the running process.
type ServerInfo struct {
	GoVersion  string     `json:"go_version"`
	OS         string     `json:"os"`
	Arch       string     `json:"arch"`
	CPUs       int        `json:"cpus"`
	Goroutines int        `json:"goroutines"`
	Memory     MemoryInfo `json:"memory"`
	StartedAt  time.Time  `json:"started_at"`
	Uptime     string     `json:"uptime"`
	UptimeSecs int64      `json:"uptime_seconds"`
}

// MemoryInfo holds raw byte counts and their human-readable forms.
type MemoryInfo struct {
	Alloc           uint64 `json:"alloc"`
	AllocHuman      string `json:"alloc_human"`
	TotalAlloc      uint64 `json:"total_alloc"`
	TotalAllocHuman string `json:"total_alloc_human"`
	Sys             uint64 `json:"sys"`
	SysHuman        string `json:"sys_human"`
	HeapInuse       uint64 `json:"heap_inuse"`
	HeapInuseHuman  string `json:"heap_inuse_human"`
	NumGC           uint32 `json:"num_gc"`
}

// ServerInfo writes runtime statistics as JSON.
func (h *OpsHandler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collect())
}

func (h *OpsHandler) collect() ServerInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := h.now().Sub(h.startedAt).Truncate(time.Second)

	return ServerInfo{
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPUs:       runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			Alloc:           m.Alloc,
			AllocHuman:      humanize.IBytes(m.Alloc),
			TotalAlloc:      m.TotalAlloc,
			TotalAllocHuman: humanize.IBytes(m.TotalAlloc),
			Sys:             m.Sys,
			SysHuman:        humanize.IBytes(m.Sys),
			HeapInuse:       m.HeapInuse,
			HeapInuseHuman:  humanize.IBytes(m.HeapInuse),
			NumGC:           m.NumGC,
		},
		StartedAt:  h.startedAt.UTC(),
		Uptime:     uptime.String(),
		UptimeSecs: int64(uptime / time.Second),
	}
}

// RegisterRoutes registers the operational routes.
func (h *OpsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/public/healthcheck", h.Healthcheck)
	mux.HandleFunc("GET /api/server_info", h.ServerInfo)
}
