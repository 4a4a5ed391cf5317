package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"needsmatch/internal/payments"
	"needsmatch/internal/store"
	"needsmatch/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/securecookie"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type NeedStore interface {
	Need(ctx context.Context, needID string) (*types.Need, error)
	Needs(ctx context.Context, filter types.NeedFilter, now time.Time) ([]*types.Need, error)
	CreateNeed(ctx context.Context, need *types.Need) error
	UpdateNeed(ctx context.Context, needID string, need *types.Need, columns []string) error
	DeleteNeed(ctx context.Context, needID string) error
}

type UserStore interface {
	User(ctx context.Context, userID string) (*types.User, error)
	Login(ctx context.Context, username string, role types.Role) (*types.User, error)
}

type BasketStore interface {
	Basket(ctx context.Context, userID string) ([]*types.BasketEntry, error)
	Item(ctx context.Context, itemID string) (*types.BasketItem, error)
	Add(ctx context.Context, userID, needID string, delta int) (*types.BasketItem, error)
	SetQuantity(ctx context.Context, itemID string, quantity int) (*types.BasketItem, error)
	Delete(ctx context.Context, itemID string) error
	Clear(ctx context.Context, userID string) (int64, error)
}

type FundingStore interface {
	Checkout(ctx context.Context, userID string, beforeCommit store.BeforeCommitFunc) (*types.CheckoutReceipt, error)
	FundingByUser(ctx context.Context, userID string) ([]*types.FundingEntry, error)
	FundingByNeed(ctx context.Context, needID string) ([]*types.FundingEntry, error)
	AllFunding(ctx context.Context) ([]*types.FundingEntry, error)
}

type EventStore interface {
	Event(ctx context.Context, eventID string) (*types.Event, error)
	Events(ctx context.Context, needID string) ([]*types.Event, error)
	CreateEvent(ctx context.Context, e *types.Event) error
	UpdateEvent(ctx context.Context, eventID string, e *types.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	Signups(ctx context.Context, eventID string) ([]*types.EventSignup, error)
	Signup(ctx context.Context, eventID, userID string) (*types.EventSignup, error)
	Cancel(ctx context.Context, eventID, userID string) (cancelled, promoted *types.EventSignup, err error)
}

type Service struct {
	logger *logrus.Logger
	config *types.Config

	needsRepo   NeedStore
	usersRepo   UserStore
	basketRepo  BasketStore
	fundingRepo FundingStore
	eventsRepo  EventStore
	charger     payments.Charger

	cookie   *securecookie.SecureCookie
	validate *validator.Validate
	now      func() time.Time

	handler http.Handler
	server  *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	needsRepo NeedStore,
	usersRepo UserStore,
	basketRepo BasketStore,
	fundingRepo FundingStore,
	eventsRepo EventStore,
	charger payments.Charger,
) (*Service, error) {
	mux := flow.New()

	cookie, err := sessionCookie(config, logger)
	if err != nil {
		return nil, err
	}

	if charger == nil {
		charger = payments.Noop{}
	}

	s := &Service{
		logger: logger,
		config: config,

		needsRepo:   needsRepo,
		usersRepo:   usersRepo,
		basketRepo:  basketRepo,
		fundingRepo: fundingRepo,
		eventsRepo:  eventsRepo,
		charger:     charger,

		cookie:   cookie,
		validate: newValidator(),
		now:      time.Now,
	}

	s.buildRouter(mux)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", headerUserID},
		AllowCredentials: true,
	}).Handler(s.StripTrailingSlash(mux))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.ServerPort),
		Handler:           s.handler,
		ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

// Handler exposes the full middleware chain, mostly for tests.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Use(s.LoggingMiddleware)
	r.Use(s.LoadActor)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.HandleFunc("/auth/login", s.handleLogin, http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout, http.MethodPost)
	r.HandleFunc("/users/:id", s.handleGetUser, http.MethodGet)

	r.HandleFunc("/needs", s.handleListNeeds, http.MethodGet)
	r.HandleFunc("/needs/:id", s.handleGetNeed, http.MethodGet)

	r.HandleFunc("/basket/user/:userID", s.handleClearBasket, http.MethodDelete)
	r.HandleFunc("/basket/:userID", s.handleGetBasket, http.MethodGet)
	r.HandleFunc("/basket", s.handleAddBasketItem, http.MethodPost)
	r.HandleFunc("/basket/:id", s.handleUpdateBasketItem, http.MethodPut)
	r.HandleFunc("/basket/:id", s.handleDeleteBasketItem, http.MethodDelete)

	r.HandleFunc("/funding/checkout", s.handleCheckout, http.MethodPost)
	r.HandleFunc("/funding/all", s.handleAllFunding, http.MethodGet)
	r.HandleFunc("/funding/user/:id", s.handleUserFunding, http.MethodGet)
	r.HandleFunc("/funding/need/:id", s.handleNeedFunding, http.MethodGet)

	r.HandleFunc("/events", s.handleListEvents, http.MethodGet)
	r.HandleFunc("/events/:id", s.handleGetEvent, http.MethodGet)
	r.HandleFunc("/events/:id/signup", s.handleSignup, http.MethodPost)
	r.HandleFunc("/events/:id/cancel", s.handleCancelSignup, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireManager)

		r.HandleFunc("/needs", s.handleCreateNeed, http.MethodPost)
		r.HandleFunc("/needs/:id", s.handleUpdateNeed, http.MethodPut)
		r.HandleFunc("/needs/:id", s.handleDeleteNeed, http.MethodDelete)

		r.HandleFunc("/events", s.handleCreateEvent, http.MethodPost)
		r.HandleFunc("/events/:id", s.handleUpdateEvent, http.MethodPut)
		r.HandleFunc("/events/:id", s.handleDeleteEvent, http.MethodDelete)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "ok"})
}

// sessionCookie builds the cookie codec from the configured keys. Missing
// keys are generated, which means sessions do not survive a restart.
func sessionCookie(config *types.Config, logger *logrus.Logger) (*securecookie.SecureCookie, error) {
	hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cookie hash key: %w", err)
	}
	blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cookie block key: %w", err)
	}

	if len(hashKey) == 0 {
		logger.Warn("COOKIE_HASH_KEY not set, generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	if len(blockKey) == 0 {
		logger.Warn("COOKIE_BLOCK_KEY not set, generating an ephemeral key")
		blockKey = securecookie.GenerateRandomKey(32)
	}

	cookie := securecookie.New(hashKey, blockKey)
	if config.SessionMaxAgeSec > 0 {
		cookie.MaxAge(config.SessionMaxAgeSec)
	}

	return cookie, nil
}
