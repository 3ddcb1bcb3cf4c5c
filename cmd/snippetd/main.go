package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"snippetd/internal/api"
	"snippetd/internal/broker"
	"snippetd/internal/config"
	"snippetd/internal/metrics"
	"snippetd/internal/pool"
	"snippetd/internal/runner"
	"snippetd/internal/schedule"
	"snippetd/internal/store"
	"snippetd/internal/store/postgres"
	"snippetd/internal/store/redisstore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "snippetd",
		Usage: "asynchronous code snippet execution service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "path to the environment file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides HTTP_ADDR",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "worker count, overrides WORKER_COUNT",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil {
		log.Warn("no env file found, reading from environment")
	}
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.WorkerCount = workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}

	poolMetrics, err := metrics.NewPoolMetrics("snippetd", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	opts := []pool.Option{pool.WithMetrics(poolMetrics)}
	if archive != nil {
		opts = append(opts, pool.WithArchive(archive))
	}

	var events broker.MessageBroker
	if cfg.RabbitURL != "" {
		rabbit, err := broker.NewRabbitMQ(cfg.RabbitURL)
		if err != nil {
			return err
		}
		events = rabbit
		opts = append(opts, pool.WithBroker(events, cfg.RabbitQueue))
	}

	workerPool := pool.New(runner.NewShellRunner(cfg.RunnerShell), opts...)
	// Workers run on a background context so a SIGINT does not kill in-flight
	// snippets; graceful shutdown below lets them finish.
	if err := workerPool.Start(context.Background(), cfg.WorkerCount); err != nil {
		return err
	}

	scheduler := schedule.New(workerPool, log.WithField("component", "scheduler"))
	scheduler.Start()

	server := api.NewServer(workerPool, scheduler, archive, log.WithField("component", "api"))
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(server),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(log.Fields{"addr": cfg.HTTPAddr, "workers": cfg.WorkerCount}).
			Info("snippetd starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		scheduler.Stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown")
		}
		if err := workerPool.Shutdown(shutdownCtx, pool.Graceful); err != nil {
			log.WithError(err).Warn("worker pool shutdown")
		}
		if archive != nil {
			if err := archive.Close(); err != nil {
				log.WithError(err).Warn("archive close")
			}
		}
		if events != nil {
			if err := events.Close(); err != nil {
				log.WithError(err).Warn("broker close")
			}
		}
		return nil
	})

	return g.Wait()
}

func openArchive(ctx context.Context, cfg *config.Config) (store.JobArchive, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		archive := postgres.NewPostgresJobArchive(db)
		if err := archive.Migrate(ctx); err != nil {
			return nil, err
		}
		return archive, nil

	case config.DriverRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return redisstore.NewRedisJobArchive(client), nil

	default:
		return nil, nil
	}
}
