package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cardbridge/carddb"
	"cardbridge/deliver"
	"cardbridge/indicator"
	"cardbridge/mqtt"
	"cardbridge/reader"
	"cardbridge/session"
)

var myBuild string

// reconnectDelay paces reader reopen attempts after the device is lost.
const reconnectDelay = 2 * time.Second

// App holds the application state and dependencies.
type App struct {
	cfg        *Config
	store      *carddb.Store
	server     *deliver.Server
	tracker    *session.Tracker
	mqtt       *mqtt.Client
	indicator  indicator.Indicator
	ctx        context.Context
	cancel     context.CancelFunc
	readerDone chan struct{}
}

func main() {
	cfgfile := flag.String("cfg", "", "Optional YAML config file")
	dbflag := flag.String("db", "", "Path to the SQLite card database")
	portflag := flag.Int("port", 0, "Delivery port (default 41112)")
	addrflag := flag.String("address", "", "Delivery address (default localhost)")
	skipbanner := flag.Bool("skip-banner", false, "Skip the startup banner")
	flag.Parse()

	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if *dbflag != "" {
		cfg.DB = *dbflag
	}
	if *portflag != 0 {
		cfg.Port = *portflag
	}
	if *addrflag != "" {
		cfg.Address = *addrflag
	}
	if *skipbanner {
		cfg.SkipBanner = true
	}

	if cfg.DB == "" {
		if _, err := os.Stat(defaultDB); err != nil {
			log.Fatalf("No database file provided and %s not found in the current directory", defaultDB)
		}
		cfg.DB = defaultDB
		fmt.Printf("Using default database: %s\n", cfg.DB)
	}

	if cfg.SkipBanner {
		printHeader()
	} else {
		printBanner()
	}
	fmt.Printf("cardbridge build %s\n", myBuild)

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		readerDone: make(chan struct{}),
	}

	// Open the card database resolver
	app.store, err = carddb.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Open card database: %v", err)
	}

	// Bind the delivery listener; a bind failure is fatal
	app.server, err = deliver.Listen(cfg.Address, cfg.Port)
	if err != nil {
		log.Fatalf("Start delivery server: %v", err)
	}
	go app.server.Serve()

	// Initialize indicator (LEDs)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}

	// Initialize MQTT status publishing
	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID)
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()

	app.tracker = session.New(app.store, app)

	// Open the tag reader; failure here, before the first successful
	// open, is fatal
	dev, err := reader.New(cfg.Reader)
	if err != nil {
		log.Fatalf("Open reader: %v", err)
	}

	go app.readerLoop(dev)
	go app.pingSender()

	log.Printf("Loaded DB path: %s", cfg.DB)
	log.Printf("Transmitting card data on %s:%d", cfg.Address, cfg.Port)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()

	// Cleanup
	app.server.Close()
	select {
	case <-app.readerDone:
	case <-time.After(2 * time.Second):
		log.Println("Reader did not stop in time")
	}
	app.mqtt.Disconnect()
	app.indicator.Release()
	app.store.Close()

	fmt.Println("Shutdown complete")
}

// readerLoop runs monitors over the reader device for the life of the
// process, reopening the device after it is lost. The session tracker
// sees every event; viewers keep getting ReaderUnavailable while the
// device is away.
func (app *App) readerLoop(dev reader.Device) {
	defer close(app.readerDone)

	for {
		mon := reader.NewMonitor(dev, app.cfg.Reader.PollInterval())
		go mon.Run(app.ctx)

		for ev := range mon.Events() {
			app.tracker.Handle(app.ctx, ev)
		}

		dev.Close()
		if app.ctx.Err() != nil {
			return
		}

		dev = app.reopenReader()
		if dev == nil {
			return
		}
		app.tracker.Reset()
	}
}

// reopenReader retries at a fixed cadence until the reader comes back
// or the process shuts down. The reader may be replugged at any time.
func (app *App) reopenReader() reader.Device {
	for {
		select {
		case <-app.ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		dev, err := reader.New(app.cfg.Reader)
		if err != nil {
			log.Printf("Reopen reader: %v", err)
			continue
		}
		log.Println("Reader reconnected")
		return dev
	}
}

// StateChanged implements session.Sink: one delivery push per visible
// session change, with the indicator and MQTT mirroring the same
// transition.
func (app *App) StateChanged(st session.State) {
	var msg deliver.Message

	switch st.Phase {
	case session.Idle:
		msg.Status = deliver.StatusCardRemoved
		app.indicator.Idle()

	case session.ReaderUnavailable:
		msg.Status = deliver.StatusReaderUnavailable
		app.indicator.ReaderLost()

	case session.TagPresent:
		if st.Card != nil {
			msg = deliver.Message{
				Status:    deliver.StatusNewCard,
				CardData:  st.Card.Data,
				Passcode:  st.Card.Passcode,
				Edition:   st.Card.Edition,
				SetString: st.Card.SetString,
				CardImage: st.Card.Image,
			}
			printScanBox(st)
		} else {
			msg = deliver.Message{
				Status:   deliver.StatusCardNotFound,
				Passcode: st.Passcode,
				Error:    st.LookupFailed,
			}
		}
		app.indicator.Card(st.Card != nil)
	}

	app.server.Push(msg)
	app.publishStatus(msg.Status, st.Passcode)
}

func (app *App) publishStatus(status, passcode string) {
	if !app.mqtt.IsEnabled() {
		return
	}
	payload, err := json.Marshal(struct {
		Status   string `json:"status"`
		Passcode string `json:"passcode,omitempty"`
	}{status, passcode})
	if err != nil {
		return
	}
	app.mqtt.Publish("card", string(payload))
}

func (app *App) pingSender() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.mqtt.Publish("ping", `{"status":"ok"}`)
		}
	}
}

// printScanBox prints the scanned tag details in an ASCII box.
func printScanBox(st session.State) {
	border := "+" + strings.Repeat("-", 60) + "+"
	fmt.Println(border)
	fmt.Printf(" Raw Data: %s \n", st.Payload)
	fmt.Printf(" Card ID: %s \n", st.Card.Passcode)
	if st.Card.SetString != "" {
		fmt.Printf(" Set: %s  Edition: %s \n", st.Card.SetString, st.Card.Edition)
	}
	fmt.Println(border)
}
