package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AjcJustin/aero-park/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pingTimeout = 5 * time.Second

// NewDB mở pool kết nối Postgres qua driver pgx/stdlib và kiểm tra kết
// nối trước khi trả về.
func NewDB(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("lỗi mở kết nối database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("lỗi ping database '%s' tại %s:%d: %w", cfg.DBName, cfg.DBHost, cfg.DBPort, err)
	}
	return db, nil
}
