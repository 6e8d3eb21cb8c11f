package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"printerconnect/config"
	"printerconnect/diagnostics"
	"printerconnect/hotplug"
	"printerconnect/planner"
	"printerconnect/printer"
	"printerconnect/protocol"
	"printerconnect/transferengine"
	"printerconnect/transport"
	"printerconnect/usbsupervisor"
	"printerconnect/webui"
)

func main() {
	configPath := flag.String("config", "connectd.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	webPort := flag.Int("web-port", 0, "diagnostics web server port (overrides config)")
	setAdminPassword := flag.String("set-admin-password", "", "hash this password into the config file's admin_pass_hash and exit")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *webPort > 0 {
		cfg.Web.Port = *webPort
	}

	if *setAdminPassword != "" {
		hash, err := webui.HashPassword(*setAdminPassword)
		if err != nil {
			log.Fatalf("hash admin password: %v", err)
		}
		cfg.Web.AdminPassHash = hash
		if err := cfg.Save(*configPath); err != nil {
			log.Fatalf("save config: %v", err)
		}
		log.Printf("admin password updated in %s", *configPath)
		return
	}

	diag, err := diagnostics.Open(cfg.Diagnostics.DatabasePath)
	if err != nil {
		log.Fatalf("open diagnostics db: %v", err)
	}
	defer diag.Close()

	fingerprint := sha256.Sum256([]byte(cfg.PrinterName))
	printerCfg := planner.Config{
		Host:  cfg.Connection.Host,
		Port:  cfg.Connection.Port,
		Token: cfg.Connection.Token,
		TLS:   cfg.Connection.TLS,
	}
	p := printer.New(printerCfg, fingerprint[:])

	engine := transferengine.New(cfg.Transfer.DestDir, cfg.Transfer.RequestTimeout, cfg.Transfer.HistorySize)

	usb := usbsupervisor.New(&usbHost{}, &printerJobs{printer: p})
	hp := hotplug.New(0)

	router, ui, stopWeb := webui.NewRouter(p, usb, hp, diag, cfg, *configPath)
	usb.SetObserver(func(from, to usbsupervisor.Phase, reason string) {
		if err := diag.LogUSBTransition(from.String(), to.String(), reason); err != nil {
			log.Printf("log usb transition: %v", err)
		}
		ui.BroadcastUSBTransition(from.String(), to.String(), reason)
	})

	webAddr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	webServer := &http.Server{Addr: webAddr, Handler: router}
	go func() {
		log.Printf("connectd web ui listening on %s", webAddr)
		if err := webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	client, err := transport.New(cfg.Transport, cfg.Connection, cfg.PrinterName, cfg.Transfer.RequestTimeout)
	if err != nil {
		log.Fatalf("build transport client: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		log.Printf("transport connect: %v (driver loop will retry via cooldown)", err)
	}

	bootTime := time.Now()
	nowFn := func() planner.Timestamp {
		return planner.Timestamp(time.Since(bootTime).Milliseconds())
	}
	pl := planner.New(p, engine, engine, nowFn)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runDriverLoop(ctx, pl, p, engine, client, diag, cfg, ui)
	}()

	<-sigCh
	log.Println("shutting down")
	cancel()
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("web server shutdown: %v", err)
	}

	<-done
	if err := client.Close(); err != nil {
		log.Printf("transport close: %v", err)
	}
}

// runDriverLoop is the single goroutine allowed to call Planner
// methods: the Planner holds no internal locks and must not be
// called concurrently. It performs each Action, reports the
// outcome, and opportunistically drains at most one inbound command
// per iteration — safe exactly when ActionDone just cleared the
// pending event, which is Planner.Command's own precondition.
func runDriverLoop(ctx context.Context, pl *planner.Planner, p *printer.SimPrinter, engine *transferengine.Engine, client transport.Client, diag *diagnostics.DB, cfg *config.Config, ui *webui.Handlers) {
	for {
		if ctx.Err() != nil {
			return
		}

		reconnectIfConfigChanged(ctx, &client, p, cfg)

		action := pl.NextAction()
		switch action.Kind {
		case planner.ActionSendEvent:
			result := client.SendEvent(ctx, action.Event)
			diag.LogAction("send_event", action.Event.Type.String(), resultString(result))
			ui.BroadcastEvent(action.Event)
			pl.ActionDone(result)
			drainCommand(pl, client, result)

		case planner.ActionSendTelemetry:
			payload := buildTelemetry(p)
			result := client.SendTelemetry(ctx, payload)
			diag.LogAction("send_telemetry", "", resultString(result))
			pl.ActionDone(result)
			drainCommand(pl, client, result)

		case planner.ActionSleep:
			if cancelled := sleepAndAdvance(ctx, pl, engine, action.Sleep); cancelled {
				return
			}
		}
	}
}

func drainCommand(pl *planner.Planner, client transport.Client, result planner.ActionResult) {
	if result == planner.ResultFailed {
		return
	}
	select {
	case cmd, ok := <-client.Commands():
		if ok {
			pl.Command(cmd)
		}
	default:
	}
}

// sleepAndAdvance waits out a Sleep action while keeping any attached
// background command or download moving. It returns true only if the
// wait was cut short by shutdown.
func sleepAndAdvance(ctx context.Context, pl *planner.Planner, engine *transferengine.Engine, s planner.Sleep) bool {
	timer := time.NewTimer(time.Duration(s.Amount) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
	}

	if s.BackgroundCommand != nil {
		// No real G-code interpreter backs this reference build; the
		// background command is treated as finishing when its sleep
		// window elapses.
		pl.BackgroundDone(planner.BackgroundSuccess)
	}
	if s.Download != nil {
		if _, ok := engine.Outcome(s.Download.TransferId); ok {
			pl.DownloadDone()
			engine.Release(s.Download.TransferId)
		}
	}
	return false
}

func reconnectIfConfigChanged(ctx context.Context, client *transport.Client, p *printer.SimPrinter, cfg *config.Config) {
	newCfg, changed := p.Config(true)
	if !changed {
		return
	}
	log.Printf("connection config changed, rebuilding transport client for host=%s", newCfg.Host)

	if err := (*client).Close(); err != nil {
		log.Printf("close old transport client: %v", err)
	}

	conn := config.ConnectionConfig{Host: newCfg.Host, Port: newCfg.Port, Token: newCfg.Token, TLS: newCfg.TLS}
	next, err := transport.New(cfg.Transport, conn, cfg.PrinterName, cfg.Transfer.RequestTimeout)
	if err != nil {
		log.Printf("rebuild transport client: %v", err)
		return
	}
	if err := next.Connect(ctx); err != nil {
		log.Printf("reconnect: %v (will retry via cooldown)", err)
	}
	*client = next
}

func buildTelemetry(p *printer.SimPrinter) protocol.TelemetryPayload {
	return protocol.TelemetryPayload{
		Printing: p.IsPrinting(),
		JobPath:  p.CurrentJob(),
	}
}

func resultString(r planner.ActionResult) string {
	switch r {
	case planner.ResultOk:
		return "ok"
	case planner.ResultRefused:
		return "refused"
	case planner.ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// usbHost is the Host the supervisor power-cycles. This reference
// build runs without real USB hardware, so Stop/Start just log the
// transition; a board-specific build would swap this for a driver
// that actually toggles the host controller's power rail.
type usbHost struct{}

func (usbHost) Stop()  { log.Println("usb host: stop") }
func (usbHost) Start() { log.Println("usb host: start") }

// printerJobs adapts SimPrinter to usbsupervisor.JobController.
type printerJobs struct {
	printer *printer.SimPrinter
}

func (j *printerJobs) ResumePrint() {
	j.printer.JobControl(planner.JobResume)
}

func (j *printerJobs) RaiseUSBFlashDiskWarning() {
	log.Println("usb supervisor: drive did not return after power cycle, paused print needs operator attention")
}
