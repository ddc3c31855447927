package container

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/api"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/aws"
	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"github.com/reliefdesk/reliefdesk-backend/internal/database"
	"github.com/reliefdesk/reliefdesk-backend/internal/logging"
	"github.com/reliefdesk/reliefdesk-backend/internal/metrics"
	"github.com/reliefdesk/reliefdesk-backend/internal/notifications"
	"github.com/reliefdesk/reliefdesk-backend/internal/queue"
	"github.com/reliefdesk/reliefdesk-backend/internal/timeline"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

type Container struct {
	Config       *config.Config
	Database     *database.Database
	Store        workflow.Store
	Users        *database.UserDirectory
	Queue        *queue.TaskQueue
	RedisClient  *redis.Client
	Sessions     *auth.SessionService
	Identity     auth.IdentityProvider
	EmailService *aws.EmailService
	S3Service    *aws.S3Service
	Metrics      *metrics.Metrics
	Guard        *access.Guard
	Notifier     *notifications.Dispatcher
	Executor     *workflow.Executor
	Server       *api.Server
	Worker       *queue.Worker
}

// queuePinger adapts TaskQueue to the readiness check.
type queuePinger struct {
	q *queue.TaskQueue
}

func (p queuePinger) Ping(ctx context.Context) error {
	return p.q.Ping()
}

// New wires every service from cfg. Anything already opened is closed again
// when a later step fails.
func New(ctx context.Context, cfg config.Config) (_ *Container, err error) {
	c := &Container{Config: &cfg}
	defer func() {
		if err != nil {
			c.Cleanup()
		}
	}()

	var readiness []api.Option

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(registry)

	var emailLookup notifications.EmailLookupFunc
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logging.Warn("Using in-memory request store; data is lost on restart")
		c.Store = workflow.NewMemoryStore()
	default:
		c.Database, err = database.New(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		if err = c.Database.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		c.Store = database.NewRequestStore(c.Database)
		c.Users = database.NewUserDirectory(c.Database)
		emailLookup = c.Users.Emails
		readiness = append(readiness, api.WithReadinessCheck("database", c.Database))

		logging.Info("Connected to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port)
	}

	switch cfg.Identity.Mode {
	case config.IdentityModeDev:
		logging.Warn("Development identity mode is enabled; callers choose their own role", "default_role", cfg.Identity.DevRole)
		c.Identity = auth.NewDevProvider(cfg.Identity.DevRole)
	default:
		// Session revocations live in this client. The asynq queue keeps its
		// own connection pool.
		c.RedisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		var jwtService *auth.JWTService
		jwtService, err = auth.NewJWTService([]byte(cfg.JWT.SigningKey), cfg.JWT.Issuer, cfg.JWT.Expiry)
		if err != nil {
			return nil, err
		}
		c.Sessions = auth.NewSessionService(c.RedisClient, jwtService)
		c.Identity = auth.NewSessionProvider(c.Sessions)
		readiness = append(readiness, api.WithReadinessCheck("sessions", c.Sessions))
	}

	c.S3Service, err = aws.NewS3Service(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	// localstack-specific config (buckets are not managed by app in prod)
	if cfg.AWS.EndpointURL != "" {
		if err := c.S3Service.EnsureBucket(ctx); err != nil {
			logging.Info("S3 bucket creation attempted", "bucket", cfg.AWS.Bucket, "result", err)
		}
	}

	c.EmailService, err = aws.NewEmailService(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	// localstack-specific config (email identity not managed by app in prod)
	if cfg.AWS.EndpointURL != "" {
		if _, err := c.EmailService.VerifyEmailIdentity(ctx); err != nil {
			logging.Error("Failed to verify email identity", "error", err)
		}
	}

	var tmpl *template.Template
	if cfg.Notify.Async {
		c.Queue, err = queue.NewQueue(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		c.Queue.SetObserver(c.Metrics)
		readiness = append(readiness, api.WithReadinessCheck("queue", queuePinger{c.Queue}))

		tmpl, err = notifications.LoadTemplates(cfg.Notify.TemplateDir)
		if err != nil {
			return nil, err
		}

		if cfg.Notify.EmbeddedWorker {
			c.Worker = queue.NewWorker(&cfg.Redis, c.EmailService, timeline.NewArchiver(c.Store, c.S3Service))
		}
	} else {
		logging.Warn("Background delivery disabled; status emails and timeline archives are skipped")
	}

	inbox := notifications.NewInbox(cfg.Notify.InboxSize)
	if c.Queue != nil {
		c.Notifier = notifications.NewDispatcher(inbox, c.Store, c.Queue, tmpl, emailLookup)
	} else {
		c.Notifier = notifications.NewDispatcher(inbox, c.Store, nil, nil, nil)
	}

	c.Guard = access.NewGuard(cfg.Routes.LoginPath, cfg.Routes.FallbackPath)
	c.Executor = workflow.NewExecutor(c.Store, c.Guard,
		workflow.WithNotifier(c.Notifier),
		workflow.WithObserver(c.Metrics),
		workflow.WithTimeout(cfg.Store.Timeout))

	opts := []api.Option{
		api.WithNotifications(c.Notifier),
		api.WithDecisionObserver(c.Metrics),
		api.WithArchives(c.S3Service),
	}
	if c.Sessions != nil {
		opts = append(opts, api.WithSessions(c.Sessions))
	}
	c.Server = api.NewServer(c.Store, c.Executor, c.Guard, append(opts, readiness...)...)

	return c, nil
}

// Router builds the HTTP handler for the API server.
func (c *Container) Router() (http.Handler, error) {
	return api.NewRouter(c.Server, api.RouterOptions{
		Identity: c.Identity,
		CORS:     &c.Config.CORS,
		Observer: c.Metrics,
		Metrics:  c.Metrics.Handler(),
	})
}

func (c *Container) Cleanup() {
	if c.Queue != nil {
		c.Queue.Close()
		logging.Info("Queue client closed")
	}
	if c.Worker != nil {
		c.Worker.Close()
		logging.Info("Worker closed")
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
		logging.Info("Redis client closed")
	}
	if c.Database != nil {
		c.Database.Close()
		logging.Info("Database connection closed")
	}
}
