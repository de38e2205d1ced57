package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage"
	"github.com/ruslanmavlyutov/dexarb-bot/internal/storage/models"
)

// gormLogger adapts zap to GORM's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

// postgresStore implements storage.Store on top of GORM.
type postgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore connects to postgres using the given DSN.
func NewStore(dsn string, zapLogger *zap.Logger) (storage.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(zapLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStore{db: db, logger: zapLogger}, nil
}

// NewStoreWithConn wraps an existing *sql.DB. Used by tests to drive the
// store against sqlmock.
func NewStoreWithConn(conn *sql.DB, zapLogger *zap.Logger) (storage.Store, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), gormConfig(zapLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over connection: %w", err)
	}
	return &postgresStore{db: db, logger: zapLogger}, nil
}

func gormConfig(zapLogger *zap.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	}
}

// RunMigrations auto-migrates the trade record schema under an advisory lock
// so concurrent instances do not race.
func (p *postgresStore) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(101)")

	err = p.db.AutoMigrate(
		&models.ExecutionRecord{},
		&models.DiscrepancyRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (p *postgresStore) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	return p.db.WithContext(ctx).Create(rec).Error
}

func (p *postgresStore) GetExecution(ctx context.Context, packetID string) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	err := p.db.WithContext(ctx).Where("packet_id = ?", packetID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *postgresStore) ListExecutions(ctx context.Context, limit, offset int) ([]*models.ExecutionRecord, error) {
	var recs []*models.ExecutionRecord
	err := p.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	return recs, err
}

func (p *postgresStore) SaveDiscrepancy(ctx context.Context, rec *models.DiscrepancyRecord) error {
	return p.db.WithContext(ctx).Create(rec).Error
}

func (p *postgresStore) RecentDiscrepancies(ctx context.Context, limit int) ([]*models.DiscrepancyRecord, error) {
	var recs []*models.DiscrepancyRecord
	err := p.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (p *postgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
