package db

import (
	"context"
	"errors"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresDB struct {
	ConnectionString string
	DB               *gorm.DB
}

func GetConnectionString() string {
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := os.Getenv("POSTGRES_DB")

	return "host=" + host + " port=" + port + " user=" + user + " password=" + password + " dbname=" + dbname + " sslmode=disable"
}

func NewPostgresDB(connectionString string) *PostgresDB {
	if connectionString == "" {
		connectionString = GetConnectionString()
	}
	return &PostgresDB{
		ConnectionString: connectionString,
	}
}

func (db *PostgresDB) Init() error {

	gdb, err := gorm.Open(postgres.Open(db.ConnectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// surface duplicate-key violations as gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return err
	}

	db.DB = gdb
	return nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *PostgresDB) Migrate(model interface{}) error {
	return db.DB.AutoMigrate(model)
}

func (db *PostgresDB) Create(ctx context.Context, model interface{}) error {
	return db.DB.WithContext(ctx).Create(model).Error
}

func (db *PostgresDB) Save(ctx context.Context, model interface{}) error {
	return db.DB.WithContext(ctx).Save(model).Error
}

// First loads the first row matching query into dest. The second return
// value distinguishes "no row" from a query failure.
func (db *PostgresDB) First(ctx context.Context, dest interface{}, query interface{}, args ...interface{}) (bool, error) {
	result := db.DB.WithContext(ctx).Where(query, args...).First(dest)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if result.Error != nil {
		return false, result.Error
	}
	return true, nil
}

// Transaction runs fn inside a database transaction, rolling back when fn
// returns an error.
func (db *PostgresDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.DB.WithContext(ctx).Transaction(fn)
}

func (db *PostgresDB) Count(ctx context.Context, model interface{}, query interface{}, args ...interface{}) (int64, error) {
	var count int64
	result := db.DB.WithContext(ctx).Model(model).Where(query, args...).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}
