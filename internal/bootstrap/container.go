package bootstrap

import (
	"context"
	"log"

	"telemed-recording-be/internal/config"
	"telemed-recording-be/internal/controller"
	"telemed-recording-be/internal/pkg/logger"
	"telemed-recording-be/internal/pkg/mailer"
	"telemed-recording-be/internal/pkg/sessionlock"
	"telemed-recording-be/internal/repository/memory"
	"telemed-recording-be/internal/repository/unitofwork"
	"telemed-recording-be/internal/service"
	"telemed-recording-be/internal/websocket"
	"telemed-recording-be/pkg/audio"
	"telemed-recording-be/pkg/events"
	pktNats "telemed-recording-be/pkg/nats"
	"telemed-recording-be/pkg/storage"
	"telemed-recording-be/pkg/summarizer"

	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// statusCacheTTL keeps status polls cheap while both clients poll the
// same session every couple of seconds.
const statusCacheTTL = 2 * time.Second

type Container struct {
	// Controllers
	RecordingController controller.IRecordingController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Durable audit trail of every lifecycle event on the bus.
	if natsSub != nil {
		err := natsSub.Subscribe(pktNats.SubjectWildcard, "recording-audit", func(ctx context.Context, evt events.Event) error {
			sysLogger.Info("EventAudit", "Lifecycle event", map[string]interface{}{
				"subject": evt.EventType(),
				"payload": evt.Payload(),
			})
			return nil
		})
		if err != nil {
			log.Printf("[WARN] Failed to start event audit subscriber: %v", err)
		}
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/recording_ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// Storage
	store, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.MergedDir)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize recording storage: %v", err)
	}

	// Audio pipeline tooling
	ffmpegMerger := audio.NewFFmpegMerger("")
	if !ffmpegMerger.Available() {
		log.Printf("[WARN] ffmpeg not found, merged output will reuse a single track")
	}
	fallbackMerger := audio.NewCopyMerger()

	geminiProvider := summarizer.NewGeminiProvider(
		cfg.Summarizer.GeminiAPIKey,
		cfg.Summarizer.GeminiModel,
		cfg.Summarizer.RequestTimeout,
		cfg.Summarizer.MaxRetries,
	)

	// 3. Services
	statusCache := memory.NewStatusCache(statusCacheTTL)
	locks := sessionlock.New()

	publisherService := service.NewPublisherService(pubSub, service.TopicProcessRecording)

	recordingService := service.NewRecordingService(
		uowFactory,
		publisherService,
		natsPub,
		wsHub,
		statusCache,
		locks,
		cfg.Storage.MinArtifactBytes,
		sysLogger,
	)

	processingService := service.NewProcessingService(
		uowFactory,
		store,
		ffmpegMerger,
		fallbackMerger,
		geminiProvider,
		emailService,
		natsPub,
		wsHub,
		statusCache,
		cfg.Summarizer.RequestTimeout,
		cfg.SMTP.NotifyEmail,
		sysLogger,
	)

	consumerService := service.NewConsumerService(
		pubSub,
		service.TopicProcessRecording,
		processingService,
	)

	// 4. Controllers
	return &Container{
		RecordingController: controller.NewRecordingController(
			recordingService,
			store,
			cfg.Storage.MaxUploadBytes,
		),
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
	}
}
