// Package api exposes the ledger, vault and campaign operations over HTTP.
// Every response either carries public metadata or an opaque ciphertext
// handle; no endpoint ever returns a plaintext confidential value.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"

	"github.com/cipherfund/cipherfund/campaigns"
	"github.com/cipherfund/cipherfund/ledger"
	"github.com/cipherfund/cipherfund/vault"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host      string
	Port      int
	Ledger    *ledger.Ledger
	Vault     *vault.Vault
	Campaigns *campaigns.Manager
}

// API type represents the API HTTP server.
type API struct {
	router    *chi.Mux
	ledger    *ledger.Ledger
	vault     *vault.Vault
	campaigns *campaigns.Manager
}

// New creates a new API instance with the given configuration.
// It also initializes the router and starts the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Ledger == nil || conf.Vault == nil || conf.Campaigns == nil {
		return nil, fmt.Errorf("missing ledger, vault or campaigns instance")
	}
	a := &API{
		ledger:    conf.Ledger,
		vault:     conf.Vault,
		campaigns: conf.Campaigns,
	}

	// Initialize router
	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", CampaignsEndpoint, "method", "POST")
	a.router.Post(CampaignsEndpoint, a.createCampaign)
	log.Infow("register handler", "endpoint", CampaignsEndpoint, "method", "GET")
	a.router.Get(CampaignsEndpoint, a.listCampaigns)
	log.Infow("register handler", "endpoint", CampaignEndpoint, "method", "GET")
	a.router.Get(CampaignEndpoint, a.campaign)
	log.Infow("register handler", "endpoint", DonationsEndpoint, "method", "POST")
	a.router.Post(DonationsEndpoint, a.donate)
	log.Infow("register handler", "endpoint", DonationsEndpoint, "method", "GET")
	a.router.Get(DonationsEndpoint, a.donations)
	log.Infow("register handler", "endpoint", CompleteEndpoint, "method", "POST")
	a.router.Post(CompleteEndpoint, a.completeCampaign)
	log.Infow("register handler", "endpoint", DecryptGrantEndpoint, "method", "POST")
	a.router.Post(DecryptGrantEndpoint, a.decryptGrant)
	log.Infow("register handler", "endpoint", CampaignWithdrawEndpoint, "method", "POST")
	a.router.Post(CampaignWithdrawEndpoint, a.withdrawCampaignFunds)
	log.Infow("register handler", "endpoint", DepositsEndpoint, "method", "POST")
	a.router.Post(DepositsEndpoint, a.deposit)
	log.Infow("register handler", "endpoint", BalanceEndpoint, "method", "GET")
	a.router.Get(BalanceEndpoint, a.balance)
	log.Infow("register handler", "endpoint", RateEndpoint, "method", "GET")
	a.router.Get(RateEndpoint, a.rate)
	log.Infow("register handler", "endpoint", AdminPauseEndpoint, "method", "POST")
	a.router.Post(AdminPauseEndpoint, a.pause)
	log.Infow("register handler", "endpoint", AdminUnpauseEndpoint, "method", "POST")
	a.router.Post(AdminUnpauseEndpoint, a.unpause)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
