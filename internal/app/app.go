// Package app builds the service graph from configuration and runs it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"compliancedesk/internal/blob"
	collabhandler "compliancedesk/internal/collaborator/handler"
	collabservice "compliancedesk/internal/collaborator/service"
	collabstore "compliancedesk/internal/collaborator/store"
	docservice "compliancedesk/internal/document/service"
	docstore "compliancedesk/internal/document/store"
	ledgerstore "compliancedesk/internal/ledger/store"
	"compliancedesk/internal/notify"
	"compliancedesk/internal/onboarding"
	"compliancedesk/internal/platform/config"
	"compliancedesk/internal/platform/database"
	"compliancedesk/internal/platform/httpserver"
	"compliancedesk/internal/platform/metrics"
	"compliancedesk/internal/platform/redis"
	"compliancedesk/internal/portal"
	"compliancedesk/internal/render"
	"compliancedesk/internal/signing"
	signinghandler "compliancedesk/internal/signing/handler"
	"compliancedesk/internal/status"
	httptransport "compliancedesk/internal/transport/http"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/audit/outbox"
	"compliancedesk/pkg/platform/audit/publishers/compliance"
	auditmemory "compliancedesk/pkg/platform/audit/store/memory"
	auditpostgres "compliancedesk/pkg/platform/audit/store/postgres"
	"compliancedesk/pkg/platform/tx"
)

// App owns the process resources and the HTTP handler.
type App struct {
	cfg     config.Server
	logger  *slog.Logger
	Router  http.Handler
	Metrics *metrics.Metrics

	db     *sql.DB
	redis  *redis.Client
	relay  *outbox.Relay
	closer []func()
}

type Option func(*options)

type options struct {
	dispatcher notify.Dispatcher
}

// WithDispatcher replaces the configured email delivery.
func WithDispatcher(d notify.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

type stores struct {
	collaborators collabservice.Store
	documents     docStore
	ledger        ledgerStore
	auditLog      auditLog
	runner        tx.Runner
}

type docStore interface {
	docservice.Store
	signing.DocumentStore
}

type ledgerStore interface {
	signing.LedgerStore
	status.EntryLister
}

type auditLog interface {
	audit.Writer
	audit.Reader
}

// New connects to the configured backends. Without a database DSN every
// store is in memory.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	a := &App{cfg: cfg, logger: logger, Metrics: metrics.New()}
	if err := a.build(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o *options) error {
	cfg, logger, reg := a.cfg, a.logger, a.Metrics.Registry

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	publisher := compliance.New(st.auditLog,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		return err
	}

	dispatcher := o.dispatcher
	if dispatcher == nil {
		if cfg.Email.APIURL != "" {
			dispatcher = notify.NewHTTPDispatcher(cfg.Email.APIURL, cfg.Email.APIKey, cfg.Email.From,
				notify.WithLogger(logger))
		} else {
			logger.Warn("no email provider configured, emails are only logged")
			dispatcher = notify.NewLogDispatcher(logger)
		}
	}
	dispatcher = notify.NewAudited(dispatcher, publisher)

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return err
	}

	collaborators := collabservice.New(st.collaborators, publisher, st.runner,
		collabservice.WithLogger(logger))
	documents := docservice.New(st.documents, st.collaborators, renderer, blobs, publisher, st.runner,
		docservice.WithLogger(logger))
	signer := signing.New(signing.Deps{
		Documents:     st.documents,
		Ledger:        st.ledger,
		Collaborators: st.collaborators,
		Auditor:       publisher,
		Dispatcher:    dispatcher,
		Renderer:      renderer,
		Blobs:         blobs,
		Tx:            st.runner,
	}, signing.Config{
		PublicBaseURL:         cfg.PublicBaseURL,
		CodeTTL:               cfg.Verification.CodeTTL,
		ValidationConcurrency: cfg.Verification.Concurrency,
	},
		signing.WithLogger(logger),
		signing.WithMetrics(signing.NewMetrics(reg)),
		signing.WithLocker(locker),
	)
	links := portal.NewLinks(cfg.Security.PortalKey, cfg.Security.PortalIssuer, cfg.PublicBaseURL, cfg.Security.PortalTTL)
	intake := onboarding.New(collaborators, documents, links, dispatcher, onboarding.WithLogger(logger))
	statuses := status.NewService(st.documents, st.ledger)

	checks := map[string]httptransport.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}

	a.Router = httptransport.NewRouter(httptransport.Config{
		AdminTokenHash: cfg.Security.AdminTokenHash,
		RequestTimeout: cfg.WriteTimeout,
		HealthChecks:   checks,
	}, httptransport.Handlers{
		Signing: signinghandler.New(signer, logger),
		Collaborators: collabhandler.New(collabhandler.Deps{
			Collaborators: collaborators,
			Onboarding:    intake,
			Status:        statuses,
			AuditLog:      st.auditLog,
			Recorder:      publisher,
		}, cfg.Email.WebhookSecret, logger),
		PortalTokens: links,
	}, a.Metrics, logger)

	return a.openRelay(ctx)
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database configured, using in-memory stores")
		return &stores{
			collaborators: collabstore.NewInMemory(),
			documents:     docstore.NewInMemory(),
			ledger:        ledgerstore.NewInMemory(),
			auditLog:      auditmemory.NewInMemoryStore(),
			runner:        tx.NewShardedRunner(),
		}, nil
	}

	db, err := database.Open(ctx, a.cfg.Database.DSN, database.Options{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closer = append(a.closer, func() { _ = db.Close() })
	if a.cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	return &stores{
		collaborators: collabstore.NewPostgres(db),
		documents:     docstore.NewPostgres(db),
		ledger:        ledgerstore.NewPostgres(db),
		auditLog:      auditpostgres.New(db),
		runner:        tx.NewSQLRunner(db),
	}, nil
}

func (a *App) openBlobs(ctx context.Context) (blob.Store, error) {
	s3cfg := a.cfg.S3
	if s3cfg.Bucket == "" {
		return blob.NewMemoryStore(a.cfg.PublicBaseURL + "/files"), nil
	}
	store, err := blob.NewS3Store(ctx, blob.S3Config{
		Bucket:        s3cfg.Bucket,
		Region:        s3cfg.Region,
		Endpoint:      s3cfg.Endpoint,
		AccessKey:     s3cfg.AccessKey,
		SecretKey:     s3cfg.SecretKey,
		PublicBaseURL: s3cfg.PublicBaseURL,
		UsePathStyle:  s3cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, nil
}

func (a *App) openLocker(ctx context.Context) (signing.Locker, error) {
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return signing.NewMemoryLocker(), nil
	}
	a.redis = client
	a.closer = append(a.closer, func() { _ = client.Close() })
	return signing.NewRedisLocker(client.Client, a.cfg.Redis.LockTTL), nil
}

func (a *App) openRelay(ctx context.Context) error {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return nil
	}
	if a.db == nil {
		a.logger.Warn("kafka configured without a database, audit relay disabled")
		return nil
	}
	producer, err := outbox.NewKafkaProducer(ctx, a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
	if err != nil {
		return fmt.Errorf("open kafka producer: %w", err)
	}
	a.closer = append(a.closer, producer.Close)
	a.relay = outbox.New(auditpostgres.New(a.db), producer,
		outbox.WithLogger(a.logger),
		outbox.WithMetrics(outbox.NewMetrics(a.Metrics.Registry)),
	)
	return nil
}

// Run serves HTTP and, when configured, relays the audit outbox until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("audit relay stopped", "error", err)
			}
		}()
	}

	srv := httpserver.New(a.cfg.Addr, a.Router, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	err := httpserver.Run(ctx, srv, a.logger)
	cancel()
	wg.Wait()
	return err
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
	a.closer = nil
}
