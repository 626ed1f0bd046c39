package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config" // Alias để tránh trùng tên
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/AjcJustin/aero-park/internal/api"
	"github.com/AjcJustin/aero-park/internal/api/handler"
	"github.com/AjcJustin/aero-park/internal/api/middleware"
	"github.com/AjcJustin/aero-park/internal/config"
	"github.com/AjcJustin/aero-park/internal/iot"
	"github.com/AjcJustin/aero-park/internal/repository"
	"github.com/AjcJustin/aero-park/internal/repository/memory"
	"github.com/AjcJustin/aero-park/internal/repository/postgresql"
	"github.com/AjcJustin/aero-park/internal/scheduler"
	"github.com/AjcJustin/aero-park/internal/service"
)

type repositories struct {
	users        repository.UserRepository
	spots        repository.SpotRepository
	reservations repository.ReservationRepository
	accessCodes  repository.AccessCodeRepository
	auditLogs    repository.AuditLogRepository
	payments     repository.PaymentRepository
	devices      repository.DeviceRepository
}

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log.Println("Cấu hình đã được tải.")

	// 2. Setup Storage Backend
	var repos repositories
	if cfg.StoreBackend == "postgres" {
		db, err := postgresql.NewDB(cfg)
		if err != nil {
			log.Fatalf("Không thể kết nối database: %v", err)
		}
		defer db.Close()
		log.Println("Đã kết nối database thành công!")

		repos = repositories{
			users:        postgresql.NewPgUserRepository(db),
			spots:        postgresql.NewPgSpotRepository(db),
			reservations: postgresql.NewPgReservationRepository(db),
			accessCodes:  postgresql.NewPgAccessCodeRepository(db),
			auditLogs:    postgresql.NewPgAuditLogRepository(db),
			payments:     postgresql.NewPgPaymentRepository(db),
			devices:      postgresql.NewPgDeviceRepository(db),
		}
	} else {
		log.Println("STORE_BACKEND=memory: dùng kho lưu trữ trong bộ nhớ.")
		repos = repositories{
			users:        memory.NewUserRepo(),
			spots:        memory.NewSpotRepo(),
			reservations: memory.NewReservationRepo(),
			accessCodes:  memory.NewAccessCodeRepo(),
			auditLogs:    memory.NewAuditLogRepo(),
			payments:     memory.NewPaymentRepo(),
			devices:      memory.NewDeviceRepo(),
		}
	}

	// 3. Khởi tạo AWS Clients (tùy chọn, cho SQS consumer và lệnh barie qua MQTT)
	var sqsClient *sqs.Client
	var iotDataPlaneClient *iotdataplane.Client
	if cfg.SQSSensorQueueURL != "" || cfg.AWSRegion != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Printf("CẢNH BÁO: Không thể tải AWS SDK config: %v. Chạy ở chế độ mô phỏng.", err)
		} else {
			log.Println("Đã tải AWS SDK config thành công cho region:", cfg.AWSRegion)
			sqsClient = sqs.NewFromConfig(awsSDKCfg)
			iotDataPlaneClient = iotdataplane.NewFromConfig(awsSDKCfg)
		}
	}

	// init websocket manager
	webSocketManager := handler.NewWebSocketManager()
	log.Println("WebSocket Manager đã được khởi tạo.")

	// 4. Initialize Services
	authService := service.NewAuthService(repos.users, cfg.JWTSecret, cfg.JWTExpirationHours)
	auditService := service.NewAuditService(repos.auditLogs)
	paymentService := service.NewPaymentService(repos.payments, auditService)
	codeService := service.NewAccessCodeService(repos.accessCodes, auditService, webSocketManager)
	parkingService := service.NewParkingService(repos.spots, repos.reservations, codeService, webSocketManager)
	reservationService := service.NewReservationService(repos.spots, repos.reservations, codeService,
		paymentService, auditService, webSocketManager,
		cfg.MinReservationMinutes, cfg.MaxReservationMinutes, cfg.DefaultReservationMinutes)
	iotService := service.NewIoTService(iotDataPlaneClient, cfg.IoTTopicPrefix)
	barrierService := service.NewBarrierService(repos.spots, codeService, reservationService,
		auditService, webSocketManager, iotService, cfg.BarrierOpenDuration)
	deviceService := service.NewDeviceService(repos.devices)

	// Khởi tạo sơ đồ chỗ đỗ (a1..aN) nếu chưa có.
	if err := parkingService.SeedSpots(context.Background(), cfg.TotalParkingSpots); err != nil {
		log.Fatalf("Không thể khởi tạo chỗ đỗ: %v", err)
	}
	log.Printf("Đã khởi tạo %d chỗ đỗ.", cfg.TotalParkingSpots)

	// 5. Initialize Auth Middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 6. Khởi động Scheduler (quét hết hạn + phát trạng thái định kỳ)
	sched := scheduler.New(reservationService, codeService, parkingService, webSocketManager,
		cfg.ReservationSweepPeriod, cfg.CodeSweepPeriod, cfg.StatusBroadcastPeriod)
	sched.Start()
	log.Println("Scheduler đã được khởi động.")

	// 7. Khởi tạo và Chạy SQS Consumer
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSSensorQueueURL == "" || sqsClient == nil {
		log.Println("CẢNH BÁO: SQS_SENSOR_QUEUE_URL chưa được cấu hình. SQS Consumer sẽ không chạy.")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqsClient, cfg.SQSSensorQueueURL, parkingService, deviceService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("SQS Consumer đang bắt đầu lắng nghe queue:", cfg.SQSSensorQueueURL)
			sqsConsumer.Start(consumerCtx)
			log.Println("SQS Consumer đã dừng.")
		}()
	}

	// 8. Setup HTTP Router
	router := api.SetupRouter(api.RouterDeps{
		AuthService:        authService,
		ParkingService:     parkingService,
		ReservationService: reservationService,
		BarrierService:     barrierService,
		CodeService:        codeService,
		DeviceService:      deviceService,
		AuditService:       auditService,
		PaymentService:     paymentService,
		AuthMw:             authMiddleware,
		WSManager:          webSocketManager,
		SensorAPIKey:       cfg.SensorAPIKey,
	})

	// 9. Start HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server đang chạy trên port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Lỗi ListenAndServe(): %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Đang tắt server...")

	cancelConsumer()
	sched.Stop()
	log.Println("Scheduler đã dừng.")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server buộc phải tắt: %v", err)
	}

	if cfg.SQSSensorQueueURL != "" && sqsClient != nil {
		log.Println("Đang chờ SQS consumer dừng (tối đa 5 giây)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("SQS consumer đã dừng hoàn toàn.")
		case <-time.After(5 * time.Second):
			log.Println("SQS consumer không dừng trong thời gian chờ.")
		}
	}

	log.Println("Server đã tắt.")
}
