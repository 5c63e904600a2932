package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/agents"
	"github.com/linesmerrill/jurysane-api/api"
	"github.com/linesmerrill/jurysane-api/api/scheduler"
	"github.com/linesmerrill/jurysane-api/casedata"
	"github.com/linesmerrill/jurysane-api/config"
	"github.com/linesmerrill/jurysane-api/databases"
	"github.com/linesmerrill/jurysane-api/models"
	"github.com/linesmerrill/jurysane-api/trial"
)

// metricsBuffer is the queue size of the request metrics collector
const metricsBuffer = 1000

// App stores the router and db connection, so it can be reused
type App struct {
	Router *mux.Router
	// Handler is the Router wrapped in CORS, ready to serve
	Handler http.Handler
	Config  config.Config

	dbHelper  databases.DatabaseHelper
	client    databases.ClientHelper
	service   *trial.Service
	hub       *EventHub
	metrics   *api.MetricsCollector
	limiter   *api.RateLimiter
	auth      api.SessionAuth
	scheduler *scheduler.Scheduler
	cases     databases.CaseDatabase
}

// Initialize connects to the database, seeds the case catalog and wires
// every component behind the router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), api.QueryTimeout)
	defer cancel()

	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("jurysane-api has connected to the database")

	cases := databases.NewCaseDatabase(a.dbHelper)
	if _, err := casedata.Seed(ctx, cases); err != nil {
		zap.S().With(err).Error("failed to seed case catalog")
		return err
	}

	llm, err := agents.NewLLM(context.Background(), a.Config.LLM)
	if err != nil {
		zap.S().With(err).Error("failed to create llm backend")
		return err
	}

	a.Wire(databases.NewTrialSessionDatabase(a.dbHelper), cases, llm)

	a.scheduler = scheduler.NewScheduler(a.service, a.Config.SessionRetention, scheduler.DefaultSpec)
	return a.scheduler.Start()
}

// Wire builds the service, hub and middleware over the given stores and
// registers the routes
func (a *App) Wire(sessions databases.TrialSessionDatabase, cases databases.CaseDatabase, llm agents.LLM) {
	a.cases = cases
	a.hub = NewEventHub(a.Config.CORSOrigins)
	a.service = trial.NewService(sessions, cases, agents.NewRoster(llm, a.Config.LLM), a.hub)
	a.metrics = api.NewMetricsCollector(metricsBuffer)
	a.limiter = api.NewRateLimiter(a.Config.AgentRateLimit, a.Config.AgentRateLimit*2)
	a.auth = api.NewSessionAuth(a.Config.SecretKey)

	a.Router = a.New()
	a.Handler = api.CORS(a.Config.CORSOrigins)(a.Router)
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := api.New()
	r.Use(a.metrics.MetricsMiddleware)
	if a.Config.RequestTimeout > 0 {
		r.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))
	}

	c := Case{DB: a.cases}
	t := Trial{Service: a.service, Auth: a.auth}
	e := Events{Hub: a.hub, Service: a.service}

	r.HandleFunc("/", a.welcomeHandler).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.HandleFunc("/info", a.infoHandler).Methods("GET")
	apiCreate.HandleFunc("/metrics", a.metricsHandler).Methods("GET")

	apiCreate.HandleFunc("/cases/", c.CasesHandler).Methods("GET")
	apiCreate.HandleFunc("/cases/search/{query}", c.CaseSearchHandler).Methods("GET")
	apiCreate.HandleFunc("/cases/category/{category}", c.CasesByCategoryHandler).Methods("GET")
	apiCreate.HandleFunc("/cases/{case_id}", c.CaseByIDHandler).Methods("GET")

	apiCreate.HandleFunc("/trial/create", t.CreateTrialHandler).Methods("POST")
	apiCreate.HandleFunc("/trial/{session_id}", t.TrialSessionHandler).Methods("GET")
	apiCreate.HandleFunc("/trial/{session_id}/transcript", t.TranscriptHandler).Methods("GET")
	apiCreate.HandleFunc("/trial/{session_id}/events", e.SessionEventsHandler).Methods("GET")

	apiCreate.Handle("/trial/{session_id}/transcript", a.seat(t.AddTranscriptHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/agent-response", a.seat(a.limited(t.AgentResponseHandler))).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/auto-response", a.seat(a.limited(t.AutomaticResponseHandler))).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/advance-phase", a.seat(t.AdvancePhaseHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/complete", a.seat(t.CompleteTrialHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/evidence/submit", a.seat(t.SubmitEvidenceHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/evidence/rule", a.seat(t.RuleOnEvidenceHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/objection/raise", a.seat(t.RaiseObjectionHandler)).Methods("POST")
	apiCreate.Handle("/trial/{session_id}/objection/rule", a.seat(a.limited(t.RuleOnObjectionHandler))).Methods("POST")

	return r
}

// seat requires the session token issued at creation
func (a *App) seat(h http.HandlerFunc) http.Handler {
	return a.auth.Middleware(h)
}

// limited applies the per-client budget of the agent routes. A zero
// budget disables limiting.
func (a *App) limited(h http.HandlerFunc) http.HandlerFunc {
	if a.Config.AgentRateLimit <= 0 {
		return h
	}
	return a.limiter.Middleware(h).ServeHTTP
}

// Close stops background work and disconnects from the database
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.metrics != nil {
		a.metrics.Stop()
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().With(err).Warn("failed to disconnect from database")
		}
	}
}

func (a *App) welcomeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.WelcomeResponse{
		Message: "Welcome to " + config.AppName + " API",
		Version: config.Version,
		Health:  "/health",
	})
}

func (a *App) infoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.InfoResponse{
		Name:        config.AppName,
		Version:     config.Version,
		Environment: a.Config.Environment,
		LLMProvider: a.service.Provider(),
		LLMModel:    a.Config.LLM.Model,
		Categories:  models.Categories,
	})
}
