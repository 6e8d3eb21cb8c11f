// Package webui is the small status/diagnostics HTTP server: an
// unauthenticated read-only status page plus an SSE activity stream,
// and a handful of session-gated mutating actions (force-reconnect,
// editing the connection settings).
package webui

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"printerconnect/config"
	"printerconnect/diagnostics"
	"printerconnect/hotplug"
	"printerconnect/planner"
	"printerconnect/printer"
	"printerconnect/usbsupervisor"
)

// Handlers holds the dependencies HTTP handlers need.
type Handlers struct {
	printer    *printer.SimPrinter
	usb        *usbsupervisor.Supervisor
	hotplug    *hotplug.Detector
	diag       *diagnostics.DB
	cfg        *config.Config
	configPath string
	sessions   *sessionStore
	eventHub   *EventHub
}

// NewRouter builds the chi router and returns it along with the
// Handlers backing it (so the driver loop can push live events onto
// the SSE stream) and a stop function that shuts down the event hub.
// configPath is where apiUpdateConnection persists an edited
// connection config back to disk.
func NewRouter(p *printer.SimPrinter, usb *usbsupervisor.Supervisor, hp *hotplug.Detector, diag *diagnostics.DB, cfg *config.Config, configPath string) (http.Handler, *Handlers, func()) {
	h := &Handlers{
		printer:    p,
		usb:        usb,
		hotplug:    hp,
		diag:       diag,
		cfg:        cfg,
		configPath: configPath,
		sessions:   newSessionStore(cfg.Web.SessionSecret),
		eventHub:   NewEventHub(),
	}
	h.eventHub.Start()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", h.handleStatus)
	r.Get("/events", h.eventHub.HandleSSE)

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.adminMiddleware)
		r.Post("/api/force-reconnect", h.apiForceReconnect)
		r.Post("/api/connection", h.apiUpdateConnection)
	})

	return r, h, func() {
		h.eventHub.Stop()
	}
}

func checkedAttr(on bool) string {
	if on {
		return "checked"
	}
	return ""
}

func (h *Handlers) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg, _ := h.printer.Config(false)
	actions, _ := h.diag.RecentActions(20)
	transitions, _ := h.diag.RecentUSBTransitions(20)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><title>connectd status</title></head><body>")
	fmt.Fprintf(w, "<h1>connectd</h1>")
	fmt.Fprintf(w, "<p>host=%s port=%d tls=%v printing=%v usb_phase=%s connected_at_startup=%v</p>",
		cfg.Host, cfg.Port, cfg.TLS, h.printer.IsPrinting(), h.usb.Phase(), h.hotplug.ConnectedAtStartup())

	fmt.Fprintf(w, "<h2>recent planner actions</h2><ul>")
	for _, a := range actions {
		fmt.Fprintf(w, "<li>%s %s kind=%s detail=%s result=%s</li>", a.OccurredAt, "", a.Kind, a.Detail, a.Result)
	}
	fmt.Fprintf(w, "</ul>")

	fmt.Fprintf(w, "<h2>recent usb transitions</h2><ul>")
	for _, t := range transitions {
		fmt.Fprintf(w, "<li>%s %s -&gt; %s (%s)</li>", t.OccurredAt, t.FromPhase, t.ToPhase, t.Reason)
	}
	fmt.Fprintf(w, "</ul>")

	fmt.Fprintf(w, `<form method="post" action="/api/force-reconnect"><button type="submit">force reconnect</button></form>`)
	fmt.Fprintf(w, `<h2>connection settings</h2>
<form method="post" action="/api/connection">
<input name="host" value="%s" placeholder="host">
<input name="port" value="%d" placeholder="port">
<input name="token" placeholder="token">
<label><input type="checkbox" name="tls" %s> tls</label>
<button type="submit">save</button>
</form>`, cfg.Host, cfg.Port, checkedAttr(cfg.TLS))
	fmt.Fprintf(w, "</body></html>")
}

func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html><html><body><form method="post" action="/login">
<input name="username"><input name="password" type="password">
<button type="submit">log in</button></form></body></html>`)
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if username == "" || username != h.cfg.Web.AdminUser || !checkPassword(password, h.cfg.Web.AdminPassHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	h.sessions.setUser(w, r, username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// apiForceReconnect marks the printer's connection config changed
// without altering it. The driver loop's reconnectIfConfigChanged sees
// the flag on its next iteration and rebuilds the transport client
// with the same values; until it does, a StartConnectDownload command
// is rejected with "Switching config".
// It also invalidates every admin session: a reconnect may be picking
// up a rotated token, and a session authenticated against the old one
// shouldn't outlive it.
func (h *Handlers) apiForceReconnect(w http.ResponseWriter, r *http.Request) {
	cfg, _ := h.printer.Config(false)
	h.printer.SetConfig(cfg)
	h.sessions.InvalidateAll()
	h.eventHub.Broadcast(SSEEvent{Type: "force-reconnect", Data: map[string]any{"host": cfg.Host}})
	w.WriteHeader(http.StatusNoContent)
}

// apiUpdateConnection is the operator's actual edit path for the
// printer's connection settings. It rewrites Config.Connection under
// Lock/Unlock (two writers — this handler and a concurrent request —
// must not interleave field assignments), persists the change to
// disk, and pushes the new values into the printer side so the
// driver loop's reconnectIfConfigChanged picks them up on its next
// poll. Sessions are invalidated the same way apiForceReconnect does,
// since a token edit here is the common reason to call this at all.
func (h *Handlers) apiUpdateConnection(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.ParseUint(r.FormValue("port"), 10, 16)
	if err != nil {
		http.Error(w, "invalid port", http.StatusBadRequest)
		return
	}

	h.cfg.Lock()
	h.cfg.Connection.Host = r.FormValue("host")
	h.cfg.Connection.Port = uint16(port)
	h.cfg.Connection.Token = r.FormValue("token")
	h.cfg.Connection.TLS = r.FormValue("tls") == "on"
	updated := h.cfg.Connection
	h.cfg.Unlock()

	if h.configPath != "" {
		if err := h.cfg.Save(h.configPath); err != nil {
			log.Printf("webui: save config after connection update: %v", err)
		}
	}

	h.printer.SetConfig(planner.Config{Host: updated.Host, Port: updated.Port, Token: updated.Token, TLS: updated.TLS})
	h.sessions.InvalidateAll()
	h.eventHub.Broadcast(SSEEvent{Type: "connection-updated", Data: map[string]any{"host": updated.Host}})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// BroadcastEvent lets the driver loop push a Planner event onto the
// SSE stream for the diagnostics page to render live.
func (h *Handlers) BroadcastEvent(evt planner.Event) {
	h.eventHub.Broadcast(SSEEvent{Type: "planner-event", Data: map[string]any{"type": evt.Type.String(), "reason": evt.Reason}})
}

// BroadcastUSBTransition lets the USB supervisor's transition
// observer push a phase change onto the SSE stream, mirroring what
// gets written to the diagnostics log.
func (h *Handlers) BroadcastUSBTransition(from, to, reason string) {
	h.eventHub.Broadcast(SSEEvent{Type: "usb-transition", Data: map[string]any{"from": from, "to": to, "reason": reason}})
}
