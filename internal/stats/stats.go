package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"sync"
	"time"
)

// Gateway counters.
const (
	TotalConnections  = "TotalConnections"
	ActiveConnections = "ActiveConnections"
	MessagesSent      = "MessagesSent"
	EventErrors       = "EventErrors"
)

// GatewayCounters lists every counter the channel gateway reports.
var GatewayCounters = []string{TotalConnections, ActiveConnections, MessagesSent, EventErrors}

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
	Stop()
}

// RegisterAll registers each named counter with p.
func RegisterAll(p StatsProvider, names ...string) {
	for _, name := range names {
		p.RegisterMetric(name)
	}
}

// StatsUpdater applies counter deltas on a single goroutine and serves the
// counters as JSON. Updates sent after Stop are dropped.
type StatsUpdater struct {
	vars     *expvar.Map
	updates  chan counterDelta
	done     chan struct{}
	stopOnce sync.Once
}

type counterDelta struct {
	name  string
	delta int64
}

// NewStatsUpdater creates a stats updater and mounts its handler on
// GET /debug/vars. The map is not published globally, so several updaters
// can coexist in one process.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		vars:    new(expvar.Map).Init(),
		updates: make(chan counterDelta, 512),
		done:    make(chan struct{}),
	}

	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	mux.HandleFunc("GET /debug/vars", su.serveVars)

	return su
}

func (su *StatsUpdater) serveVars(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(su.Snapshot())
}

// Snapshot returns the current value of every registered counter plus the
// process uptime in milliseconds.
func (su *StatsUpdater) Snapshot() map[string]any {
	snap := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		switch v := kv.Value.(type) {
		case *expvar.Int:
			snap[kv.Key] = v.Value()
		case expvar.Func:
			snap[kv.Key] = v.Value()
		default:
			snap[kv.Key] = v.String()
		}
	})

	return snap
}

func (su *StatsUpdater) apply() {
	for {
		select {
		case u := <-su.updates:
			su.vars.Add(u.name, u.delta)
		case <-su.done:
			return
		}
	}
}

func (su *StatsUpdater) send(name string, delta int64) {
	select {
	case su.updates <- counterDelta{name: name, delta: delta}:
	case <-su.done:
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.send(name, 1)
}

func (su *StatsUpdater) Decr(name string) {
	su.send(name, -1)
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.apply()
}

// Stop ends the update goroutine. It is safe to call more than once.
func (su *StatsUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.done) })
}
