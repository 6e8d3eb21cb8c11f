package webui

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"printerconnect/config"
	"printerconnect/diagnostics"
	"printerconnect/hotplug"
	"printerconnect/planner"
	"printerconnect/printer"
	"printerconnect/usbsupervisor"
)

type noopHost struct{}

func (noopHost) Stop()  {}
func (noopHost) Start() {}

type noopJobs struct{}

func (noopJobs) ResumePrint()             {}
func (noopJobs) RaiseUSBFlashDiskWarning() {}

func testHandlers(t *testing.T) *Handlers {
	t.Helper()

	db, err := diagnostics.Open(filepath.Join(t.TempDir(), "diag.db"))
	if err != nil {
		t.Fatalf("open diagnostics: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := printer.New(planner.Config{Host: "connect.test", Port: 443, TLS: true}, []byte("fingerprint"))
	usb := usbsupervisor.New(noopHost{}, noopJobs{})
	hp := hotplug.New(0)

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cfg := config.Defaults()
	cfg.Web.AdminUser = "admin"
	cfg.Web.AdminPassHash = hash

	return &Handlers{
		printer:    p,
		usb:        usb,
		hotplug:    hp,
		diag:       db,
		cfg:        cfg,
		configPath: filepath.Join(t.TempDir(), "connectd.yaml"),
		sessions:   newSessionStore(""),
		eventHub:   NewEventHub(),
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := testHandlers(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleStatus)
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.handleLogin(w, r)
			return
		}
		h.handleLoginPage(w, r)
	})
	mux.Handle("/api/force-reconnect", h.adminMiddleware(http.HandlerFunc(h.apiForceReconnect)))
	mux.Handle("/api/connection", h.adminMiddleware(http.HandlerFunc(h.apiUpdateConnection)))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loggedInClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}
	form := url.Values{"username": {"admin"}, "password": {"s3cret"}}
	resp, err := client.PostForm(srv.URL+"/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	return client
}

func TestUpdateConnectionPersistsAndPushesToPrinter(t *testing.T) {
	h := testHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/connection", strings.NewReader(
		url.Values{"host": {"new.example.com"}, "port": {"8443"}, "token": {"newtok"}, "tls": {"on"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.apiUpdateConnection(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if h.cfg.Connection.Host != "new.example.com" || h.cfg.Connection.Port != 8443 || h.cfg.Connection.Token != "newtok" || !h.cfg.Connection.TLS {
		t.Errorf("cfg.Connection = %+v, want updated fields", h.cfg.Connection)
	}
	printerCfg, _ := h.printer.Config(false)
	if printerCfg.Host != "new.example.com" || printerCfg.Port != 8443 {
		t.Errorf("printer.Config() = %+v, want pushed new connection", printerCfg)
	}

	saved, err := config.Load(h.configPath)
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if saved.Connection.Host != "new.example.com" {
		t.Errorf("saved config host = %q, want new.example.com", saved.Connection.Host)
	}
}

func TestUpdateConnectionRequiresLogin(t *testing.T) {
	srv := newTestServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	form := url.Values{"host": {"new.example.com"}, "port": {"8443"}}
	resp, err := client.PostForm(srv.URL+"/api/connection", form)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 redirect to /login", resp.StatusCode)
	}
}

func TestStatusPageIsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestForceReconnectRequiresLogin(t *testing.T) {
	srv := newTestServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Post(srv.URL+"/api/force-reconnect", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 redirect to /login", resp.StatusCode)
	}
}

func TestLoginThenForceReconnectSucceeds(t *testing.T) {
	srv := newTestServer(t)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}

	form := url.Values{"username": {"admin"}, "password": {"s3cret"}}
	resp, err := client.PostForm(srv.URL+"/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200 after redirect follow", resp.StatusCode)
	}

	resp2, err := client.Post(srv.URL+"/api/force-reconnect", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("force-reconnect: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp2.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	resp, err := http.PostForm(srv.URL+"/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	body := make([]byte, 512)
	n, _ := resp.Body.Read(body)
	if !strings.Contains(string(body[:n]), "invalid credentials") {
		t.Errorf("body = %q, want invalid credentials message", body[:n])
	}
}
