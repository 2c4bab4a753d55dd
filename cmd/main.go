package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	routegraph "github.com/sakhatrans/routegraph"
	"github.com/sakhatrans/routegraph/cache"
	"github.com/sakhatrans/routegraph/normalize"
	"github.com/sakhatrans/routegraph/parse"
	"github.com/sakhatrans/routegraph/provider"
	"github.com/sakhatrans/routegraph/risk"
	"github.com/sakhatrans/routegraph/storage"
	"github.com/sakhatrans/routegraph/worker"
)

var rootCmd = &cobra.Command{
	Use:          "routegraph",
	Short:        "Sakha transport route graph tool",
	Long:         "Ingests regional transport data, builds the route graph, and plans trips",
	SilenceUsage: true,
}

var (
	dbPath     string
	useRedis   bool
	fixtureDir string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "", ".", "directory for the sqlite database")
	rootCmd.PersistentFlags().BoolVarP(&useRedis, "redis", "", false, "use redis for caching (REDIS_* env)")
	rootCmd.PersistentFlags().StringVarP(&fixtureDir, "fixture", "", "", "directory with stops.csv/routes.csv/flights.csv to ingest instead of the upstream API")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Everything the subcommands need, wired once per invocation.
type app struct {
	log      zerolog.Logger
	storage  storage.Storage
	cache    cache.Cache
	norm     *normalize.Normalizer
	store    *routegraph.Store
	planner  *routegraph.Planner
	pipeline *worker.Orchestrator
	adaptive bool
}

func buildApp() (*app, error) {
	log := newLogger()

	norm, err := normalize.NewNormalizer()
	if err != nil {
		return nil, fmt.Errorf("loading unified reference: %w", err)
	}

	st, err := newStorage()
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	c, err := newCache()
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	store := routegraph.NewStore(st, norm, log)
	if err := store.LoadActive(); err != nil && err != routegraph.ErrNoActiveGraph {
		return nil, fmt.Errorf("restoring active graph: %w", err)
	}

	engine := risk.NewEngine(log)
	adaptive := envBool("USE_ADAPTIVE_DATA_LOADING", true)

	a := &app{
		log:      log,
		storage:  st,
		cache:    c,
		norm:     norm,
		store:    store,
		planner:  routegraph.NewPlanner(store, norm, engine, log),
		adaptive: adaptive,
	}

	orch := worker.NewOrchestrator(st, c, log)
	orch.AllowReinit = os.Getenv("ENV") != "production"
	orch.Register(worker.NewIngest(newProvider(c, log), st, c, norm, log))
	orch.Register(worker.NewVirtual(st, norm, adaptive, log))
	orch.Register(worker.NewGraphBuild(st, store, log))
	a.pipeline = orch

	return a, nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = l
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func newStorage() (storage.Storage, error) {
	if conn := os.Getenv("DB_CONN"); conn != "" {
		return storage.NewPSQLStorage(conn, true)
	}
	return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbPath})
}

func newCache() (cache.Cache, error) {
	if !useRedis && os.Getenv("REDIS_HOST") == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(cache.RedisConfig{
		Host:     envStr("REDIS_HOST", "localhost"),
		Port:     envInt("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}

func newProvider(c cache.Cache, log zerolog.Logger) provider.Provider {
	if fixtureDir != "" {
		return fixtureProvider(fixtureDir)
	}

	cfg := provider.DefaultConfig()
	cfg.BaseURL = os.Getenv("ODATA_BASE_URL")
	cfg.Username = os.Getenv("ODATA_USERNAME")
	cfg.Password = os.Getenv("ODATA_PASSWORD")
	cfg.Timeout = envDur("ODATA_TIMEOUT", cfg.Timeout)
	cfg.RetryAttempts = envInt("ODATA_RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryDelay = envDur("ODATA_RETRY_DELAY", cfg.RetryDelay)
	cfg.EnableCache = envBool("ODATA_ENABLE_CACHE", true)
	return provider.NewODataProvider(cfg, c, log)
}

// Serves a local CSV snapshot instead of the upstream API. Missing
// files degrade to header-only tables.
func fixtureProvider(dir string) provider.Provider {
	read := func(name, header string) []byte {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return []byte(header)
		}
		return body
	}
	return &provider.StaticProvider{
		Snapshot: &parse.RawSnapshot{
			StopsCSV:   read("stops.csv", "id,name,lat,lon,city,kind"),
			RoutesCSV:  read("routes.csv", "id,number,kind,stops,fare,operator,est_minutes"),
			FlightsCSV: read("flights.csv", "id,route_id,from_stop,to_stop,departure,arrival,price,seats,status"),
		},
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
