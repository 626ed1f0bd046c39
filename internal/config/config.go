package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	// StoreBackend chọn tầng lưu trữ: "postgres" hoặc "memory".
	StoreBackend string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion         string
	SQSSensorQueueURL string
	IoTTopicPrefix    string

	JWTSecret          string        // Secret key cho JWT
	JWTExpirationHours time.Duration // Thời gian hết hạn của JWT

	SensorAPIKey string // API key cho endpoint cảm biến/barie, rỗng = chế độ mô phỏng

	TotalParkingSpots         int
	MinReservationMinutes     int
	MaxReservationMinutes     int
	DefaultReservationMinutes int

	BarrierOpenDuration    time.Duration
	ReservationSweepPeriod time.Duration
	CodeSweepPeriod        time.Duration
	StatusBroadcastPeriod  time.Duration
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Cảnh báo: Không thể tải file .env: %v", err)
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	jwtExpHours, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24")) // Mặc định 24 giờ

	totalSpots, _ := strconv.Atoi(getEnv("TOTAL_PARKING_SPOTS", "3"))
	minMinutes, _ := strconv.Atoi(getEnv("MIN_RESERVATION_MINUTES", "15"))
	maxMinutes, _ := strconv.Atoi(getEnv("MAX_RESERVATION_MINUTES", "480"))
	defaultMinutes, _ := strconv.Atoi(getEnv("DEFAULT_RESERVATION_MINUTES", "60"))

	barrierOpenSec, _ := strconv.Atoi(getEnv("BARRIER_OPEN_DURATION_SECONDS", "10"))
	reservationSweepSec, _ := strconv.Atoi(getEnv("RESERVATION_SWEEP_SECONDS", "30"))
	codeSweepSec, _ := strconv.Atoi(getEnv("CODE_SWEEP_SECONDS", "60"))
	statusBroadcastSec, _ := strconv.Atoi(getEnv("STATUS_BROADCAST_SECONDS", "60"))

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", "memory"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "youruser"),         // << THAY THẾ
		DBPassword: getEnv("DB_PASSWORD", "yourpassword"), // << THAY THẾ
		DBName:     getEnv("DB_NAME", "aero_park_db"),     // << THAY THẾ
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:         getEnv("AWS_REGION", "ap-southeast-1"), // << THAY BẰNG REGION CỦA BẠN
		SQSSensorQueueURL: getEnv("SQS_SENSOR_QUEUE_URL", ""),     // << ĐIỀN URL SQS QUEUE
		IoTTopicPrefix:    getEnv("IOT_TOPIC_PREFIX", "aero_park/command/barriers"),

		JWTSecret:          getEnv("JWT_SECRET", "your-very-secret-key-for-jwt-!@#$"), // << THAY BẰNG SECRET KEY MẠNH HƠN
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,

		SensorAPIKey: getEnv("SENSOR_API_KEY", ""),

		TotalParkingSpots:         totalSpots,
		MinReservationMinutes:     minMinutes,
		MaxReservationMinutes:     maxMinutes,
		DefaultReservationMinutes: defaultMinutes,

		BarrierOpenDuration:    time.Duration(barrierOpenSec) * time.Second,
		ReservationSweepPeriod: time.Duration(reservationSweepSec) * time.Second,
		CodeSweepPeriod:        time.Duration(codeSweepSec) * time.Second,
		StatusBroadcastPeriod:  time.Duration(statusBroadcastSec) * time.Second,
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Biến môi trường '%s' không được đặt, sử dụng giá trị mặc định: '%s'", key, fallback)
	return fallback
}
