package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/driver/webshop"
	"rtx-finder/pkg/helperfuncs"
	"rtx-finder/pkg/notify"
	"rtx-finder/pkg/structs"
	"rtx-finder/pkg/switcher"

	"github.com/julienschmidt/httprouter"
)

// StockAlertHandler represents an instance of this service
type StockAlertHandler struct {
	Settings *structs.Settings
	// Webshops maps every card URL to the webshop driver that understands its page
	Webshops map[string]webshop.Webshop
	Notifier notify.Notifier
	// Open is called with the product URL after a notification, nil disables it
	Open          func(url string) error
	ScreenshotDir string
	Now           func() time.Time

	mutex    sync.RWMutex
	budget   *structs.PurchaseBudget
	outcomes map[string]ProductStatus
}

// ProductStatus is the latest outcome for one card as served by the status API
type ProductStatus struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Outcome   string    `json:"outcome"`
	Price     *float64  `json:"price,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Status is the body of GET /api/status
type Status struct {
	Autobuy      bool            `json:"autobuy"`
	Bought       int             `json:"bought"`
	AutobuyLimit int             `json:"autobuy_limit"`
	Products     []ProductStatus `json:"products"`
}

// NewStockAlertHandler wires the handler for settings. Every card URL must belong to a known webshop
func NewStockAlertHandler(settings *structs.Settings, notifier notify.Notifier) (*StockAlertHandler, error) {
	webshops := make(map[string]webshop.Webshop, len(settings.Cards))
	for _, card := range settings.Cards {
		shop, _, err := switcher.GetWebshop(card.URL)
		if err != nil {
			return nil, fmt.Errorf("Failed to init webshop interface for %s (%w)", card.Name, err)
		}
		webshops[card.URL] = shop
	}

	return &StockAlertHandler{
		Settings:      settings,
		Webshops:      webshops,
		Notifier:      notifier,
		Open:          helperfuncs.OpenInBrowser,
		ScreenshotDir: helperfuncs.ScreenshotDir,
		Now:           time.Now,
		outcomes:      make(map[string]ProductStatus),
	}, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	settingsPath := flag.String("config", helperfuncs.DefaultSettingsPath, "Path to the settings file")
	localPath := flag.String("local", helperfuncs.DefaultLocalSettingsPath, "Path to the optional local settings override")
	debug := flag.Bool("debug", false, "Log debug lines")
	flag.Parse()

	if *debug {
		helperfuncs.SetLogLevel(helperfuncs.LevelDebug)
	}

	settings, err := helperfuncs.LoadSettings(*settingsPath, *localPath)
	if err != nil {
		helperfuncs.Error("%v", err)
		return 1
	}
	helperfuncs.Log("Settings loaded: %d card(s), driver %s", len(settings.Cards), settings.Driver)

	handler, err := NewStockAlertHandler(settings, notify.Desktop{})
	if err != nil {
		helperfuncs.Error("%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.StatusAddr != "" {
		server := &http.Server{Addr: settings.StatusAddr, Handler: handler.Router()}
		go func() {
			helperfuncs.Log("Serving status API on %s", settings.StatusAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				helperfuncs.Error("Status API stopped (%v)", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	return serve(ctx, handler, switcher.GetSession)
}

// serve starts a session with open, monitors until a failure or cancellation and closes the session
// exactly once on the way out. It returns the process exit status
func serve(ctx context.Context, handler *StockAlertHandler, open func(*structs.Settings) (driver.Session, error)) int {
	session, err := open(handler.Settings)
	if err != nil {
		helperfuncs.Error("Failed to start %s session (%v)", handler.Settings.Driver, err)
		return 1
	}
	defer func() {
		if err := session.Close(); err != nil {
			helperfuncs.Warn("Failed to close session (%v)", err)
		}
	}()

	err = handler.monitor(ctx, session)
	if errors.Is(err, context.Canceled) {
		helperfuncs.Log("Shutting down")
		return 0
	}
	helperfuncs.Error("%v", err)
	return 1
}

// record stores outcome as the latest status of card and hands it back
func (handler *StockAlertHandler) record(card structs.Card, outcome structs.CheckOutcome) structs.CheckOutcome {
	handler.mutex.Lock()
	defer handler.mutex.Unlock()

	if handler.outcomes == nil {
		handler.outcomes = make(map[string]ProductStatus)
	}
	status := ProductStatus{
		Name:      card.Name,
		URL:       card.URL,
		Outcome:   outcome.Kind.String(),
		CheckedAt: handler.Now(),
	}
	if outcome.Kind == structs.AvailableWithinBudget || outcome.Kind == structs.AvailableAboveLimit {
		price := outcome.Price
		status.Price = &price
	}
	handler.outcomes[card.Name] = status
	return outcome
}

// Router serves the read-only status API
func (handler *StockAlertHandler) Router() http.Handler {
	router := httprouter.New()
	router.GET("/api/status", corsHandler(handler.StatusHandler))
	router.GET("/api/products", corsHandler(handler.ProductsHandler))
	router.GET("/api/products/:name", corsHandler(handler.ProductHandler))
	return router
}

// StatusHandler reports the purchase budget and the latest outcome of every card in configured order
func (handler *StockAlertHandler) StatusHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := Status{
		Autobuy:      handler.Settings.Autobuy,
		AutobuyLimit: handler.Settings.AutobuyLimit,
		Products:     handler.products(),
	}
	handler.mutex.RLock()
	budget := handler.budget
	handler.mutex.RUnlock()
	if budget != nil {
		status.Bought = budget.Bought()
	}

	writeJSON(w, status)
}

// ProductsHandler lists the latest outcome of every checked card in configured order
func (handler *StockAlertHandler) ProductsHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, handler.products())
}

func (handler *StockAlertHandler) products() []ProductStatus {
	handler.mutex.RLock()
	defer handler.mutex.RUnlock()

	products := make([]ProductStatus, 0, len(handler.Settings.Cards))
	for _, card := range handler.Settings.Cards {
		if productStatus, ok := handler.outcomes[card.Name]; ok {
			products = append(products, productStatus)
		}
	}
	return products
}

// ProductHandler reports the latest outcome of a single card
func (handler *StockAlertHandler) ProductHandler(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := params.ByName("name")

	handler.mutex.RLock()
	productStatus, ok := handler.outcomes[name]
	handler.mutex.RUnlock()

	if !ok {
		logAndWriteResponse(w, "No status for %s yet", http.StatusNotFound, name)
		return
	}
	writeJSON(w, productStatus)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		helperfuncs.Warn("Failed to encode status response (%v)", err)
	}
}

// corsHandler lets a dashboard on another origin read the status
func corsHandler(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		w.Header().Add("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Methods", "GET, OPTIONS")
		next(w, r, params)
	}
}

// logAndWriteResponse is wrapper for logging that logs to console and also writes to the http writer
func logAndWriteResponse(w http.ResponseWriter, format string, statusCode int, params ...interface{}) {
	if statusCode != http.StatusOK {
		helperfuncs.Warn(format, params...)
	} else {
		helperfuncs.Debug(format, params...)
	}

	w.WriteHeader(statusCode)
	fmt.Fprintf(w, format, params...)
}
