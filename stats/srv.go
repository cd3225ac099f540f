package stats

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type FileStats struct {
	ReadBytes  uint64 `json:"read-bytes"`
	WriteBytes uint64 `json:"write-bytes"`
	OpenCount  uint64 `json:"open-count"`
	IoctlCount uint64 `json:"ioctl-count"`
}

type DriverStats struct {
	Calls    uint64 `json:"calls"`
	Errors   uint64 `json:"errors"`
	Timeouts uint64 `json:"timeouts"`
}

type Stats struct {
	ReadBytes   uint64 `json:"read-bytes"`
	WriteBytes  uint64 `json:"write-bytes"`
	OpenCount   uint64 `json:"open-count"`
	CreateCount uint64 `json:"create"`
	CloseCount  uint64 `json:"close"`
	IoctlCount  uint64 `json:"ioctl"`
	PipeCount   uint64 `json:"pipe"`

	Files   map[string]FileStats
	Drivers map[string]DriverStats
}

var (
	// Mutex to protect concurrent access to stats
	statsMutex sync.RWMutex
	stats      = newStats()

	registry = prometheus.NewRegistry()

	syscalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvfs",
		Name:      "syscalls_total",
		Help:      "File descriptor table operations by name and outcome.",
	}, []string{"op", "result"})

	driverCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvfs",
		Name:      "driver_calls_total",
		Help:      "Commands sent to user-space drivers.",
	}, []string{"driver", "op", "result"})

	driverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kvfs",
		Name:      "driver_call_seconds",
		Help:      "Time from writing a command block to its completion.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"op"})
)

func init() {
	registry.MustRegister(syscalls, driverCalls, driverLatency)
}

func newStats() *Stats {
	return &Stats{
		Files:   make(map[string]FileStats),
		Drivers: make(map[string]DriverStats),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// AddSyscall counts one descriptor table operation.
func AddSyscall(op string, err error) {
	syscalls.WithLabelValues(op, result(err)).Inc()
}

func AddReadBytes(name string, cnt uint64) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.ReadBytes += cnt

	f := stats.Files[name]
	f.ReadBytes += cnt
	stats.Files[name] = f
}

func AddWriteBytes(name string, cnt uint64) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.WriteBytes += cnt

	f := stats.Files[name]
	f.WriteBytes += cnt
	stats.Files[name] = f
}

func AddOpen(name string) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.OpenCount++

	f := stats.Files[name]
	f.OpenCount++
	stats.Files[name] = f
}

func AddCreate(name string) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.CreateCount++
}

func AddClose(name string) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.CloseCount++
}

func AddIoctl(name string) {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.IoctlCount++

	f := stats.Files[name]
	f.IoctlCount++
	stats.Files[name] = f
}

func AddPipe() {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats.PipeCount++
}

// AddDriverCall records one completed (or abandoned) command block round
// trip to the named driver.
func AddDriverCall(driver, op string, d time.Duration, err error, timedOut bool) {
	driverCalls.WithLabelValues(driver, op, result(err)).Inc()
	driverLatency.WithLabelValues(op).Observe(d.Seconds())

	statsMutex.Lock()
	defer statsMutex.Unlock()

	ds := stats.Drivers[driver]
	ds.Calls++
	if err != nil {
		ds.Errors++
	}
	if timedOut {
		ds.Timeouts++
	}
	stats.Drivers[driver] = ds
}

// Snapshot returns a copy of the current counters.
func Snapshot() Stats {
	statsMutex.RLock()
	defer statsMutex.RUnlock()

	s := *stats
	s.Files = make(map[string]FileStats, len(stats.Files))
	for k, v := range stats.Files {
		s.Files[k] = v
	}
	s.Drivers = make(map[string]DriverStats, len(stats.Drivers))
	for k, v := range stats.Drivers {
		s.Drivers[k] = v
	}
	return s
}

// Reset clears the JSON counters. Prometheus counters are monotonic and
// are left alone.
func Reset() {
	statsMutex.Lock()
	defer statsMutex.Unlock()
	stats = newStats()
}

// Handler serves the JSON counters at "/", a reset hook at "/reset" and the
// Prometheus registry at "/metrics".
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", statsHandler)
	mux.HandleFunc("/reset", resetHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func StatServer(addr string) error {
	return http.ListenAndServe(addr, Handler())
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	s := Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&s)
}

func resetHandler(w http.ResponseWriter, r *http.Request) {
	Reset()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Stats reset successfully!"))
}
