package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"tradeengine/internal/api/handlers"
	"tradeengine/internal/api/middleware"
	"tradeengine/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies bundles everything SetupRoutes needs to wire handlers.
type Dependencies struct {
	ExchangeService *service.ExchangeService
	SettingsService service.SettingsServiceInterface
	Webhook         handlers.WebhookDispatcher
	Admin           handlers.AdminEngine
	AdminTokenHash  string
}

// SetupRoutes wires every HTTP route:
//
//	/webhook/alert               - unauthenticated, scanner-facing
//	/api/v1/broker/...           - broker connection management
//	/api/v1/settings             - engine settings
//	/api/v1/admin/...            - kill switch, square-off, alert configs, reconcile (bearer auth)
//	/ws/stream                   - dropped: no UI push channel in this engine
//	/health, /metrics, /debug/*  - operational endpoints
//
// Middleware order: Recovery, Logging, CORS globally; admin routes
// additionally require NewAdminAuth.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	var exchangeHandler *handlers.ExchangeHandler
	if deps != nil && deps.ExchangeService != nil {
		exchangeHandler = handlers.NewExchangeHandler(deps.ExchangeService)
	}

	var settingsHandler *handlers.SettingsHandler
	if deps != nil && deps.SettingsService != nil {
		settingsHandler = handlers.NewSettingsHandler(deps.SettingsService)
	}

	var webhookHandler *handlers.WebhookHandler
	if deps != nil && deps.Webhook != nil {
		webhookHandler = handlers.NewWebhookHandler(deps.Webhook)
	}

	var adminHandler *handlers.AdminHandler
	if deps != nil && deps.Admin != nil {
		adminHandler = handlers.NewAdminHandler(deps.Admin)
	}

	if webhookHandler != nil {
		router.HandleFunc("/webhook/alert", webhookHandler.Handle).Methods("POST")
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	if exchangeHandler != nil {
		api.HandleFunc("/broker/connect", exchangeHandler.ConnectBroker).Methods("POST")
		api.HandleFunc("/broker/connect", exchangeHandler.DisconnectBroker).Methods("DELETE")
		api.HandleFunc("/broker", exchangeHandler.GetBroker).Methods("GET")
		api.HandleFunc("/broker/balance", exchangeHandler.GetBrokerBalance).Methods("GET")
	}

	if settingsHandler != nil {
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
	}

	if adminHandler != nil && deps.AdminTokenHash != "" {
		admin := api.PathPrefix("/admin").Subrouter()
		admin.Use(middleware.NewAdminAuth(deps.AdminTokenHash))

		admin.HandleFunc("/kill", adminHandler.GetKillSwitch).Methods("GET")
		admin.HandleFunc("/kill", adminHandler.SetKillSwitch).Methods("POST")
		admin.HandleFunc("/square-off", adminHandler.BulkSquareOff).Methods("POST")
		admin.HandleFunc("/alert-configs", adminHandler.ListAlertConfigs).Methods("GET")
		admin.HandleFunc("/alert-configs", adminHandler.SaveAlertConfig).Methods("POST")
		admin.HandleFunc("/alert-configs", adminHandler.DeleteAlertConfig).Methods("DELETE")
		admin.HandleFunc("/reconcile", adminHandler.Reconcile).Methods("GET")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("heap").ServeHTTP(w, r)
	})
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("goroutine").ServeHTTP(w, r)
	})
	debug.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("block").ServeHTTP(w, r)
	})
	debug.HandleFunc("/threadcreate", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("threadcreate").ServeHTTP(w, r)
	})
	debug.HandleFunc("/mutex", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("mutex").ServeHTTP(w, r)
	})
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) {
		pprof.Handler("allocs").ServeHTTP(w, r)
	})

	router.Handle("/debug/runtime", middleware.DebugAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{`))
		w.Write([]byte(`"goroutines":` + itoa(runtime.NumGoroutine()) + `,`))
		w.Write([]byte(`"heap_alloc_mb":` + ftoa(float64(m.HeapAlloc)/1024/1024) + `,`))
		w.Write([]byte(`"heap_sys_mb":` + ftoa(float64(m.HeapSys)/1024/1024) + `,`))
		w.Write([]byte(`"num_gc":` + itoa(int(m.NumGC)) + `,`))
		w.Write([]byte(`"gc_pause_total_ms":` + ftoa(float64(m.PauseTotalNs)/1e6)))
		w.Write([]byte(`}`))
	}))).Methods("GET")

	return router
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

func ftoa(f float64) string {
	i := int(f * 100)
	whole := i / 100
	frac := i % 100
	if frac < 0 {
		frac = -frac
	}
	fracStr := itoa(frac)
	if len(fracStr) == 1 {
		fracStr = "0" + fracStr
	}
	return itoa(whole) + "." + fracStr
}
