// Command server wires the vault service, its treasury backend and the
// audit pipeline, then serves the HTTP surface until interrupted. Business
// logic lives in internal packages; main only assembles and supervises.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vestry/internal/platform/config"
	"vestry/internal/platform/httpserver"
	"vestry/internal/platform/kafka"
	"vestry/internal/platform/logger"
	"vestry/internal/platform/postgres"
	redisplatform "vestry/internal/platform/redis"
	"vestry/internal/platform/token"
	treasurymemory "vestry/internal/treasury/memory"
	treasuryredis "vestry/internal/treasury/redis"
	"vestry/internal/vault/handler"
	"vestry/internal/vault/metrics"
	"vestry/internal/vault/ports"
	"vestry/internal/vault/service"
	"vestry/internal/vault/store/ledger"
	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
	"vestry/pkg/platform/audit/publisher"
	"vestry/pkg/platform/audit/relay"
	auditmemory "vestry/pkg/platform/audit/store/memory"
	auditpostgres "vestry/pkg/platform/audit/store/postgres"
	"vestry/pkg/platform/httputil"
	adminmw "vestry/pkg/platform/middleware/admin"
	authmw "vestry/pkg/platform/middleware/auth"
	"vestry/pkg/platform/middleware/device"
	request "vestry/pkg/platform/middleware/request"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	custody, err := custodyAccount(cfg)
	if err != nil {
		log.Error("invalid VAULT_ACCOUNT", "error", err)
		os.Exit(1)
	}

	// Treasury backend.
	treasury, closeTreasury, err := buildTreasury(cfg, custody)
	if err != nil {
		log.Error("treasury init failed", "error", err)
		os.Exit(1)
	}
	defer closeTreasury()

	// Audit pipeline: postgres outbox when a database is configured,
	// in-memory otherwise; optional Kafka relay drains the outbox.
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	var auditStore audit.Store
	if db != nil {
		store := auditpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Error("audit schema init failed", "error", err)
			os.Exit(1)
		}
		auditStore = store
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}

	var pubOpts []publisher.Option
	if cfg.AuditBuffer > 0 {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(cfg.AuditBuffer))
	}
	pub := publisher.NewPublisher(auditStore, pubOpts...)
	defer pub.Close()

	svc, err := service.New(ledger.NewRegistry(), treasury, custody,
		service.WithLogger(log),
		service.WithPublisher(pub),
		service.WithMetrics(metrics.New()),
	)
	if err != nil {
		log.Error("service init failed", "error", err)
		os.Exit(1)
	}

	tokens := token.NewService(cfg.JWTSigningKey, "vestry")
	router := newRouter(cfg, log, svc, tokens)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Kafka.Brokers != "" && db != nil {
		kclient, err := kafka.New(cfg.Kafka)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kclient.Close()

		r := relay.New(db, kclient, cfg.Kafka.AuditTopic, relay.WithLogger(log))
		if err := r.EnsureTopic(ctx); err != nil {
			log.Error("audit topic init failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return r.Run(ctx) })
	}

	g.Go(func() error {
		log.Info("starting vestry", "addr", cfg.Addr, "treasury", cfg.TreasuryBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// custodyAccount resolves the vault's custody account. Without explicit
// configuration a fresh account is minted; fine for the in-memory backend,
// wrong for anything persistent.
func custodyAccount(cfg config.Config) (domain.AccountID, error) {
	if cfg.VaultAccount == "" {
		return domain.AccountID(uuid.New()), nil
	}
	return domain.ParseAccountID(cfg.VaultAccount)
}

func buildTreasury(cfg config.Config, custody domain.AccountID) (ports.Treasury, func(), error) {
	switch cfg.TreasuryBackend {
	case "redis":
		client, err := redisplatform.New(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		if client == nil {
			return nil, nil, errors.New("TREASURY_BACKEND=redis requires REDIS_URL")
		}
		return treasuryredis.New(client.Client, custody), func() { _ = client.Close() }, nil
	default:
		return treasurymemory.New(custody), func() {}, nil
	}
}

func newRouter(cfg config.Config, log *slog.Logger, svc *service.Service, tokens *token.Service) chi.Router {
	h := handler.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(device.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.DevTokens {
		r.Post("/dev/token", devTokenHandler(tokens))
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(tokens, log))
		h.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(tokens, log))
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, log))
		h.RegisterAdmin(r)
	})

	return r
}

// devTokenHandler mints an access token for an arbitrary account. Local
// development only; gated by VESTRY_DEV_TOKENS.
func devTokenHandler(tokens *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Account string `json:"account"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		account, err := domain.ParseAccountID(req.Account)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		accessToken, err := tokens.GenerateAccessToken(account, time.Hour)
		if err != nil {
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
	}
}
