package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/config"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/httpapi"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/hub"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/inspection"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/ledger"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/reconcile"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store/postgres"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/telemetry"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/workflow"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("requests-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	if cfg.MigrationsURL != "" {
		runDBMigration(cfg.MigrationsURL, cfg.DatabaseURL)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	pg := postgres.NewStore(pool)
	wf := workflow.NewService(pg)
	engine := inspection.NewEngine(pg, pg)
	ledgerService := ledger.NewService(pg)
	reconciler := reconcile.New(pg, pg, reconcile.Config{
		PollInterval: cfg.PollInterval,
		SeedLimit:    cfg.SeedLimit,
		EventBuffer:  cfg.EventBuffer,
	})

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go reconciler.Run(runCtx)

	h := hub.New()
	go broadcastEvents(runCtx, reconciler, h)

	handler := httpapi.NewHandler(pg, wf, engine, reconciler, ledgerService)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		ViewerPerMinute: cfg.ViewerRateLimitPerMinute,
		ViewerBurst:     cfg.ViewerRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	mux.Handle("/realtime/", realtimeHandler(pg, h, cfg.HubSendBuffer))

	chained := httpapi.LoggingMiddleware(limiter.Middleware(httpapi.AuthMiddleware(pg, mux)))
	otelHandler := otelhttp.NewHandler(chained, "requests-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("requests-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancelRun()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// broadcastEvents fans reconciler events out to connected dashboard
// sessions. New-job alerts carry the submitter so the hub can scope them to
// factory staff plus the owning sales rep.
func broadcastEvents(ctx context.Context, reconciler *reconcile.Reconciler, h *hub.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-reconciler.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("marshal event: %v", err)
				continue
			}
			meta := hub.Meta{JobType: event.Request.JobType}
			if event.Type == reconcile.EventNewJob {
				meta.Owner = event.Request.CreatedBy
			}
			h.Broadcast(payload, meta)
		}
	}
}

func realtimeHandler(pg *postgres.Store, h *hub.Hub, sendBuffer int) http.Handler {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		sessionID := realtimeSessionID(session.Request())
		if sessionID == "" {
			_ = session.Close(4001, "missing session")
			return
		}
		authSession, err := pg.GetSession(context.Background(), sessionID)
		if err != nil {
			_ = session.Close(4002, "invalid session")
			return
		}

		client := &hub.Client{
			ID:         uuid.NewString(),
			Viewer:     authSession.Identity,
			Privileged: authSession.Role == models.RoleFactory,
			Send:       make(chan []byte, sendBuffer),
		}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			jobType, ok := models.ParseJobType(parsed.JobType)
			if !ok && parsed.JobType != "" {
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{JobType: jobType})
		}
	})
}

func realtimeSessionID(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("session_id"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatalf("cannot create migrate instance: %v", err)
	}
	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("failed to run migrate up: %v", err)
	}
	log.Println("db migrated successfully")
}
