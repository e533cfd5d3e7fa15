package bootstrap

import (
	"context"
	"log"
	"time"

	"vitals-scan-be/internal/config"
	"vitals-scan-be/internal/controller"
	"vitals-scan-be/internal/handler"
	"vitals-scan-be/internal/pkg/logger"
	"vitals-scan-be/internal/pkg/serverutils"
	"vitals-scan-be/internal/repository/memory"
	"vitals-scan-be/internal/service"
	"vitals-scan-be/internal/tracer"
	"vitals-scan-be/internal/websocket"
	"vitals-scan-be/pkg/camera"
	camsim "vitals-scan-be/pkg/camera/simulated"
	pktNats "vitals-scan-be/pkg/nats"
	"vitals-scan-be/pkg/vitals"
	vitalsim "vitals-scan-be/pkg/vitals/simulated"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

const (
	profileTTL     = 2 * time.Hour
	measurementTTL = 24 * time.Hour
)

type Container struct {
	// Controllers
	ProfileController     controller.IProfileController
	MeasurementController controller.IMeasurementController

	// Background Services (Exposed for main.go to run)
	ConsumerService    service.IConsumerService
	AuditService       *service.AuditService
	MeasurementService service.IMeasurementService

	// WebSockets
	MeasurementHandler *handler.MeasurementHandler
	WebSocketHub       *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction(),
		logger.WithLevel(cfg.App.LogLevel),
		logger.WithSDKLogs(cfg.App.EnableSDKLogs),
	)
	c := &Container{Logger: sysLogger}

	// Results hand-off bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// NATS is optional: without it lifecycle events are only logged
	var events service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		events = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		c.AuditService = service.NewAuditService(natsSub, logger.NewIsolatedLogger(cfg.App.AuditLogFilePath), sysLogger)
		c.closers = append(c.closers, natsSub.Close)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (single-instance websocket delivery)", err)
		rdb.Close()
		rdb = nil
	} else {
		c.closers = append(c.closers, func() { rdb.Close() })
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	c.closers = append(c.closers, stopHub)
	c.WebSocketHub = websocket.NewHub(rdb, logger.NewIsolatedLogger("logs/websocket.log"))
	go c.WebSocketHub.Run(hubCtx)

	// Repositories & services
	tokens := serverutils.NewTokenIssuer(cfg.App.JWTSecret, cfg.App.TokenTTL)
	measurementRepo := memory.NewMeasurementRepository(measurementTTL)
	profileService := service.NewProfileService(memory.NewProfileRepository(profileTTL), sysLogger)

	realClock := clock.New()
	c.MeasurementService = service.NewMeasurementService(cfg.Vitals, service.MeasurementServiceDeps{
		Repo:     measurementRepo,
		Profiles: profileService,
		Tokens:   tokens,
		Frames:   c.WebSocketHub,
		Events:   events,
		Results:  pubSub,
		Simulated: func(uuid.UUID) (vitals.Engine, camera.Source) {
			return vitalsim.New(realClock, vitalsim.DefaultScript()), camsim.NewSource()
		},
		Clock:  realClock,
		Tracer: otel.Tracer(tracer.ServiceName),
		Logger: sysLogger,
	})
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Vitals.ResultsTopic,
		measurementRepo,
		c.WebSocketHub,
		events,
		sysLogger,
	)

	// Controllers & handlers
	c.ProfileController = controller.NewProfileController(profileService)
	c.MeasurementController = controller.NewMeasurementController(c.MeasurementService, tokens)
	c.MeasurementHandler = handler.NewMeasurementHandler(c.MeasurementService, tokens, c.WebSocketHub, sysLogger)

	return c
}

// Close tears down live measurements, then the infrastructure in reverse
// order of creation.
func (c *Container) Close() {
	c.MeasurementService.Shutdown()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
