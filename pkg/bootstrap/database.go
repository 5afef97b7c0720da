package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/migrations"
)

const (
	postgresMaxOpenConns = 10
	postgresConnMaxIdle  = 5 * time.Minute
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(dc.Config.Database.Redis.Host, strconv.Itoa(dc.Config.Database.Redis.Port)),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected", "addr", rdb.Options().Addr)
	return rdb, nil
}

// postgresDSN escapes the credentials, which may hold URL metacharacters.
func postgresDSN(cfg config.PostgresConfig) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// InitPostgreSQL returns nil, nil when no host is configured.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pg := dc.Config.Database.Postgres
	if pg.Host == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", postgresDSN(pg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(postgresMaxOpenConns)
	db.SetConnMaxIdleTime(postgresConnMaxIdle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Infow("PostgreSQL migrations applied")
	}

	dc.Logger.Infow("PostgreSQL connected", "host", pg.Host, "dbname", pg.DBName)
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	if dc.Config.Database.MongoDB.URI == "" {
		return nil, nil
	}

	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected")
	return mongoClient, nil
}

// Connections is what InitTracking opened. Unused fields stay nil.
type Connections struct {
	Redis    *redis.Client
	Postgres *sql.DB
	Mongo    *mongo.Client
}

// InitTracking connects the backend selected by tracking.backend and builds
// the store on it. Redis is also opened when the redelivery guard is on.
func (dc *DatabaseConnector) InitTracking(ctx context.Context) (tracking.Store, *Connections, error) {
	conns := &Connections{}
	var backends tracking.Backends

	fail := func(err error) (tracking.Store, *Connections, error) {
		for _, c := range conns.Closers() {
			_ = c.Close(ctx)
		}
		return nil, nil, err
	}

	backend := dc.Config.Tracking.Backend
	if backend == constants.BackendRedis || dc.Config.Deduplication.Enabled {
		rdb, err := dc.InitRedis(ctx)
		if err != nil {
			return fail(err)
		}
		conns.Redis = rdb
		backends.Redis = rdb
	}

	switch backend {
	case constants.BackendPostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return fail(err)
		}
		conns.Postgres = db
		backends.Postgres = db
	case constants.BackendMongoDB:
		client, err := dc.InitMongoDB(ctx)
		if err != nil {
			return fail(err)
		}
		conns.Mongo = client
		if client != nil {
			name := dc.Config.Database.MongoDB.Database
			if name == "" {
				name = constants.DefaultMongoDBName
			}
			backends.Mongo = client.Database(name)

			collection := dc.Config.Tracking.MongoCollection
			if collection == "" {
				collection = constants.DefaultMongoCollection
			}
			if err := migrations.EnsureMongoCollection(ctx, backends.Mongo, collection); err != nil {
				return fail(err)
			}
		}
	}

	store, err := tracking.New(dc.Config.Tracking, dc.Config.CircuitBreaker, backends)
	if err != nil {
		return fail(err)
	}

	dc.Logger.Infow("Tracking store ready", "backend", backend)
	return store, conns, nil
}

// Closers returns the shutdown steps for every open connection.
func (c *Connections) Closers() []Closer {
	if c == nil {
		return nil
	}
	var closers []Closer
	if c.Redis != nil {
		closers = append(closers, Closer{Name: "redis", Close: func(context.Context) error { return c.Redis.Close() }})
	}
	if c.Postgres != nil {
		closers = append(closers, Closer{Name: "postgres", Close: func(context.Context) error { return c.Postgres.Close() }})
	}
	if c.Mongo != nil {
		closers = append(closers, Closer{Name: "mongodb", Close: c.Mongo.Disconnect})
	}
	return closers
}
