// Package kernel assembles the HTTP application: services, event listeners,
// the middleware stack and every route.
package kernel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/controllers"
	"github.com/campusbite/canteen/app/listeners"
	"github.com/campusbite/canteen/app/repositories"
	"github.com/campusbite/canteen/app/routes"
	"github.com/campusbite/canteen/app/schema"
	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/cache"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/graphql"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/metrics"
	"github.com/campusbite/canteen/pkg/middleware"
	"github.com/campusbite/canteen/pkg/notification"
	"github.com/campusbite/canteen/pkg/reqid"
	"github.com/campusbite/canteen/pkg/response"
	"github.com/campusbite/canteen/pkg/router"
	"github.com/campusbite/canteen/pkg/sse"
	"github.com/campusbite/canteen/pkg/storage"
	"github.com/campusbite/canteen/pkg/telemetry"
	"github.com/campusbite/canteen/pkg/ws"
)

// Deps are the connections the kernel is built on. Only DB is required.
type Deps struct {
	DB    *gorm.DB
	Bus   *event.Bus
	Cache *cache.Store
	Disk  storage.Disk
	MQ    listeners.Publisher

	Gateways   services.GatewayConfig
	WebhookURL string
	// HTTPClient is used for payment gateways and webhooks; nil means default.
	HTTPClient *http.Client

	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
}

// Services are shared with the scheduler and CLI commands.
type Services struct {
	Auth          *services.AuthService
	Shops         *services.ShopService
	Orders        *services.OrderService
	Tokens        *services.TokenService
	Notifications *services.NotificationService
	Uploads       *services.UploadService
	Payments      *services.PaymentService
}

type Kernel struct {
	Services    Services
	Hub         *ws.Hub
	SSE         *sse.Broker
	Broadcaster *listeners.Broadcaster

	db     *gorm.DB
	router *router.Router
}

// New wires services to the bus and registers every route.
func New(d Deps) (*Kernel, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("kernel: database is required")
	}
	if d.Bus == nil {
		d.Bus = event.NewBus()
	}

	orders := services.NewOrderService(d.DB, d.Bus)
	svc := Services{
		Auth:          services.NewAuthService(repositories.NewUserRepository(d.DB)),
		Shops:         services.NewShopService(repositories.NewShopRepository(d.DB), d.Cache),
		Orders:        orders,
		Tokens:        services.NewTokenService(d.DB, d.Bus),
		Notifications: services.NewNotificationService(repositories.NewNotificationRepository(d.DB)),
		Uploads:       services.NewUploadService(d.Disk),
		Payments:      services.NewPaymentService(d.Gateways, orders, d.HTTPClient),
	}
	svc.Shops.Register(d.Bus)

	k := &Kernel{
		Services: svc,
		Hub:      ws.NewHub(),
		SSE:      sse.NewBroker(),
		db:       d.DB,
		router:   router.New(),
	}
	k.Hub.OnCount = func(n int) { metrics.RealtimeClients.WithLabelValues("ws").Set(float64(n)) }
	k.SSE.OnCount = func(n int) { metrics.RealtimeClients.WithLabelValues("sse").Set(float64(n)) }
	k.Broadcaster = &listeners.Broadcaster{Hub: k.Hub, SSE: k.SSE, Relay: d.Cache, MQ: d.MQ}
	k.Broadcaster.Register(d.Bus)
	(&listeners.Notifier{Dispatcher: &notification.Dispatcher{
		Store:      listeners.NotificationStore{Repo: repositories.NewNotificationRepository(d.DB)},
		WebhookURL: d.WebhookURL,
		Client:     d.HTTPClient,
	}}).Register(d.Bus)

	shopSchema, err := schema.Shops(svc.Shops)
	if err != nil {
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}

	r := k.router
	// Outermost first: tracing and metrics see total latency, recovery
	// catches panics before the request id and logger run.
	r.Use(telemetry.Middleware("canteen.http"))
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	cors := middleware.CORSFromConfig()
	r.Use(middleware.CORS(cors))
	if d.RateLimit > 0 {
		r.Use(middleware.RateLimit(d.RateLimit, time.Minute))
	}

	r.Get("/healthz", "health", k.health)
	r.Mount("/metrics", metrics.Handler())
	ws.SetCheckOrigin(cors.CheckOrigin)
	r.Get("/ws", "realtime.ws", k.Hub.Serve, middleware.AuthMiddleware)
	r.Get("/api/events", "realtime.sse", k.SSE.ServeHTTP, middleware.AuthMiddleware)
	r.Post("/graphql", "graphql", graphql.Handler(shopSchema).ServeHTTP, middleware.AuthMiddleware)
	if local, ok := d.Disk.(*storage.Local); ok {
		r.Mount("/storage", http.StripPrefix("/storage", http.FileServer(http.Dir(local.Root()))))
	}

	routes.RegisterAPI(r, routes.Controllers{
		Auth:          controllers.NewAuthController(svc.Auth),
		Shops:         controllers.NewShopController(svc.Shops),
		Orders:        controllers.NewOrderController(svc.Orders),
		Notifications: controllers.NewNotificationController(svc.Notifications),
		Uploads:       controllers.NewUploadController(svc.Uploads),
		Payments:      controllers.NewPaymentController(svc.Payments),
	})
	return k, nil
}

func (k *Kernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists the registered endpoints.
func (k *Kernel) Routes() []router.Route { return k.router.Routes() }

// Run serves push clients until ctx ends.
func (k *Kernel) Run(ctx context.Context) {
	go k.Hub.Run(ctx)
	go func() {
		if err := k.Broadcaster.RunRelay(ctx); err != nil && ctx.Err() == nil {
			logger.Error("kernel: event relay stopped", "error", err)
		}
	}()
}

func (k *Kernel) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := k.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	response.Success(w, map[string]interface{}{
		"status":     "ok",
		"ws_clients": k.Hub.ClientCount(),
		"sse_clients": k.SSE.Len(),
	})
}
