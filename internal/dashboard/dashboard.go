// Package dashboard serves the signal log over HTTP: an HTML table of recent
// signals, a JSON API, and a WebSocket stream that pushes the latest window
// on a fixed cadence. It only ever reads the log; concurrent appends by the
// scanner are benign.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"pumpwatch/internal/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// recentWindow bounds every read of the signal log.
const recentWindow = 20

const pageTemplate = `<!DOCTYPE html>
<html>
<head><title>Pump Signals</title></head>
<body>
<h2>Pump Signal Dashboard</h2>
<table border="1" cellpadding="6">
<tr><th>Token</th><th>Chain</th><th>Score</th><th>AI Prob</th><th>Liquidity</th><th>Momentum</th><th>Time</th></tr>
{{range .}}
<tr>
<td>{{.Token}}</td>
<td>{{.Chain}}</td>
<td>{{.Score}}</td>
<td>{{.Probability}}%</td>
<td>${{printf "%.0f" .LiquidityUSD}}</td>
<td>{{.Momentum}}</td>
<td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td>
</tr>
{{else}}
<tr><td colspan="7">No signals yet</td></tr>
{{end}}
</table>
</body>
</html>`

// SignalReader is the slice of the store the dashboard needs.
type SignalReader interface {
	RecentSignals(n int) ([]storage.Signal, error)
}

// Dashboard serves the presentation endpoints.
type Dashboard struct {
	store    SignalReader
	server   *http.Server
	upgrader websocket.Upgrader
	tmpl     *template.Template

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool
}

// New builds a dashboard listening on the given port.
func New(store SignalReader, port int) *Dashboard {
	d := &Dashboard{
		store:    store,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		tmpl:     template.Must(template.New("signals").Parse(pageTemplate)),
		clients:  make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", d.handleIndex).Methods("GET")
	r.HandleFunc("/api/signals", d.handleSignals).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket)

	d.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return d
}

// Start runs the HTTP server and the WebSocket broadcaster until ctx is
// canceled.
func (d *Dashboard) Start(ctx context.Context) {
	go d.broadcastLoop(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("dashboard shutdown failed")
		}
	}()

	go func() {
		log.Info().Str("addr", d.server.Addr).Msg("dashboard listening")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()
}

// Handler exposes the router for tests.
func (d *Dashboard) Handler() http.Handler {
	return d.server.Handler
}

func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	signals, err := d.store.RecentSignals(recentWindow)
	if err != nil {
		http.Error(w, "signal log unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.Execute(w, signals); err != nil {
		log.Error().Err(err).Msg("dashboard template render failed")
	}
}

func (d *Dashboard) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := d.store.RecentSignals(recentWindow)
	if err != nil {
		http.Error(w, "signal log unavailable", http.StatusInternalServerError)
		return
	}
	if signals == nil {
		signals = []storage.Signal{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(signals); err != nil {
		log.Error().Err(err).Msg("dashboard signals encode failed")
	}
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	// Reader loop only exists to detect the close.
	go func() {
		defer d.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcastLoop pushes the recent window to every connected client on a fixed
// cadence, matching the scanner's pace closely enough for a log viewer.
func (d *Dashboard) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			signals, err := d.store.RecentSignals(recentWindow)
			if err != nil {
				log.Warn().Err(err).Msg("dashboard broadcast read failed")
				continue
			}
			d.broadcast(signals)
		}
	}
}

func (d *Dashboard) broadcast(signals []storage.Signal) {
	d.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(d.clients))
	for c := range d.clients {
		conns = append(conns, c)
	}
	d.clientsMu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(signals); err != nil {
			d.dropClient(conn)
		}
	}
}

func (d *Dashboard) dropClient(conn *websocket.Conn) {
	d.clientsMu.Lock()
	if _, ok := d.clients[conn]; ok {
		delete(d.clients, conn)
		conn.Close()
	}
	d.clientsMu.Unlock()
}
