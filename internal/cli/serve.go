package cli

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rodysim/rody/pkg/api"
	"github.com/rodysim/rody/pkg/cache"
	"github.com/rodysim/rody/pkg/observability"
	"github.com/rodysim/rody/pkg/pipeline"
	"github.com/rodysim/rody/pkg/store"
)

// Environment variables read by serve. Flags take precedence.
const (
	envAddr     = "RODY_ADDR"
	envRedis    = "RODY_REDIS_ADDR"
	envRedisPwd = "RODY_REDIS_PASSWORD"
	envMongo    = "RODY_MONGO_URI"
)

// connectTimeout bounds the initial connection to each backend.
const connectTimeout = 10 * time.Second

// serveOptions holds the serve command flags.
type serveOptions struct {
	addr      string
	redisAddr string
	redisDB   int
	mongoURI  string
	mongoDB   string
	dataDir   string
	memory    bool
	noCache   bool
	maxSteps  int
	timeout   time.Duration
}

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulation runs over HTTP",
		Long: `Start the HTTP API.

Runs are cached in Redis when --redis (or ` + envRedis + `) is set and in the
local cache directory otherwise. Run records go to MongoDB when --mongo (or
` + envMongo + `) is set, to memory with --memory and to the data directory
otherwise.

Endpoints:
  POST   /v1/runs               simulate a scenario (JSON or application/toml)
  GET    /v1/runs               list stored runs
  GET    /v1/runs/{id}          fetch one run
  GET    /v1/runs/{id}/output   raw output of a run
  DELETE /v1/runs/{id}          delete a run
  GET    /healthz, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", envOr(envAddr, ":8080"), "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", envOr(envRedis, ""), "Redis address for the result cache")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", envOr(envMongo, ""), "MongoDB URI for run records")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", "rody", "MongoDB database name")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "directory for run records (default ~/.local/share/rody/runs)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep run records in memory only")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", api.DefaultMaxSteps, "largest timeline a request may ask for")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", api.DefaultRunTimeout, "time limit per run")

	return cmd
}

func (c *CLI) serve(ctx context.Context, opts serveOptions) error {
	rc, err := c.serveCache(ctx, opts)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(rc, nil, c.Logger)
	defer runner.Close()

	st, err := c.serveStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	counters := observability.NewCounters()
	observability.SetSimulationHooks(counters)
	observability.SetCacheHooks(counters)
	observability.SetHTTPHooks(counters)
	defer observability.Reset()

	srv := api.New(api.Config{
		Runner:     runner,
		Store:      st,
		Logger:     c.Logger,
		Counters:   counters,
		MaxSteps:   opts.maxSteps,
		RunTimeout: opts.timeout,
	})

	printInfo("Listening on %s", opts.addr)
	err = srv.Serve(ctx, opts.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// serveCache picks the result cache backend.
func (c *CLI) serveCache(ctx context.Context, opts serveOptions) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisAddr == "" {
		return newCache(false)
	}

	spinner := newSpinnerWithContext(ctx, "Connecting to Redis at "+opts.redisAddr+"...")
	spinner.Start()
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:        opts.redisAddr,
		Password:    envOr(envRedisPwd, ""),
		DB:          opts.redisDB,
		DialTimeout: connectTimeout,
	})
	if err != nil {
		spinner.StopWithError("Redis unavailable")
		return nil, err
	}
	spinner.StopWithSuccess("Connected to Redis")
	return rc, nil
}

// serveStore picks the run record backend.
func (c *CLI) serveStore(ctx context.Context, opts serveOptions) (store.Store, error) {
	switch {
	case opts.mongoURI != "":
		spinner := newSpinnerWithContext(ctx, "Connecting to MongoDB...")
		spinner.Start()
		st, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:      opts.mongoURI,
			Database: opts.mongoDB,
			Timeout:  connectTimeout,
		})
		if err != nil {
			spinner.StopWithError("MongoDB unavailable")
			return nil, err
		}
		spinner.StopWithSuccess("Connected to MongoDB")
		return st, nil

	case opts.memory:
		return store.NewMemoryStore(), nil

	default:
		dir := opts.dataDir
		if dir == "" {
			base, err := dataDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(base, "runs")
		}
		st, err := store.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		printDetail("Run records: %s", st.Path())
		return st, nil
	}
}
