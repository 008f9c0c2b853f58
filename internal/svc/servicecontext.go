package svc

import (
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	ttlcache "tickd/internal/cache"
	"tickd/internal/config"
	"tickd/internal/ingest"
	"tickd/internal/store"
	feedpkg "tickd/pkg/feed"
	_ "tickd/pkg/feed/sim"
	_ "tickd/pkg/feed/truedata"
)

type ServiceContext struct {
	Config *config.Config

	DBConn    sqlx.SqlConn
	TickStore *store.TickStore

	Redis       *redis.Redis
	TTL         ttlcache.TTLSet
	LatestCache *store.LatestCache

	Pipeline   *ingest.Pipeline
	Controller *ingest.Controller
}

func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: c,
		TTL:    ttlcache.NewTTLSet(c.TTL.Short, c.TTL.Medium, c.TTL.Long),
	}

	if c.Postgres.DSN == "" {
		log.Fatal("postgres.dsn is required")
	}
	svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	svc.TickStore = store.NewTickStore(svc.DBConn)

	// Redis is optional; without it the latest-price cache is a no-op and
	// reads fall through to the in-memory aggregates.
	if c.Redis.Host != "" {
		svc.Redis = redis.MustNewRedis(c.Redis)
		svc.LatestCache = store.NewLatestCache(svc.Redis, svc.TTL.Short)
	}

	feedCfg := c.Feed.Value
	if feedCfg == nil {
		feedCfg = feedpkg.MustLoad()
	}
	factory, err := feedCfg.SourceFactory("")
	if err != nil {
		log.Fatalf("failed to resolve feed source: %v", err)
	}

	opts := []ingest.Option{}
	if svc.LatestCache != nil {
		latest := svc.LatestCache
		opts = append(opts, ingest.WithAcceptedHook(latest.Set))
	}

	svc.Pipeline = ingest.NewPipeline(factory, svc.TickStore, ingest.PipelineConfig{
		Symbols:          c.Ingest.Symbols,
		WindowSize:       c.Ingest.WindowSize,
		Workers:          c.Ingest.Workers,
		FlushSize:        c.Ingest.FlushSize,
		FlushInterval:    time.Duration(c.Ingest.FlushIntervalMs) * time.Millisecond,
		FlushTimeout:     time.Duration(c.Ingest.FlushTimeoutMs) * time.Millisecond,
		MaxBacklog:       c.Ingest.MaxBacklog,
		ConnectTimeout:   time.Duration(c.Ingest.ConnectTimeoutSec) * time.Second,
		HeartbeatTimeout: time.Duration(c.Ingest.HeartbeatTimeoutSec) * time.Second,
	}, opts...)
	svc.Controller = ingest.NewController(svc.Pipeline)

	return svc
}
