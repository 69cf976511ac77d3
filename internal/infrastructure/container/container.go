package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/infrastructure/config"
	postgresrepo "xbook/internal/infrastructure/storage/postgres"
	redisrepo "xbook/internal/infrastructure/storage/redis"
	sqliterepo "xbook/internal/infrastructure/storage/sqlite"
)

// Container 持有所有存储连接（遥测落库）
type Container struct {
	cfg          config.StorageConfig
	redisClient  *redis.Client
	redisRepo    *redisrepo.Repo
	sqliteRepo   *sqliterepo.Repo
	postgresRepo *postgresrepo.Repo
	closeOnce    sync.Once
	closerChain  []func() error
}

// New 按配置初始化启用的存储；失败时关闭已打开的部分
func New(ctx context.Context, cfg config.StorageConfig) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}
	if err := c.initStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage(ctx context.Context) error {
	if c.cfg.Redis.Enabled {
		if err := c.initRedis(ctx); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if c.cfg.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if c.cfg.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(
		rdb,
		c.cfg.Redis.Prefix,
		time.Duration(c.cfg.Redis.TTLSeconds)*time.Second,
		c.cfg.Redis.EventStream,
		c.cfg.Redis.EventChannel,
		c.cfg.Redis.StreamMaxLen,
	)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return c.redisRepo.Close()
	})

	log.Info().
		Str("addr", c.cfg.Redis.Addr).
		Int("db", c.cfg.Redis.DB).
		Msg("redis initialized")
	return nil
}

func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().Str("path", c.cfg.SQLite.Path).Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := postgresrepo.New(c.cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	c.postgresRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Journals 所有启用的落库 sink（不包含 nil）
func (c *Container) Journals() []port.Telemetry {
	var out []port.Telemetry
	if c.redisRepo != nil {
		out = append(out, c.redisRepo)
	}
	if c.sqliteRepo != nil {
		out = append(out, c.sqliteRepo)
	}
	if c.postgresRepo != nil {
		out = append(out, c.postgresRepo)
	}
	return out
}

// RedisClient 获取 Redis 客户端
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// SQLiteRepo 获取 SQLite 仓储，未启用时为 nil
func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
