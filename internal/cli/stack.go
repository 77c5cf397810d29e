package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/pkg/adapters/file"
	flowhttp "github.com/aretw0/flowtalk/pkg/adapters/http"
	"github.com/aretw0/flowtalk/pkg/adapters/loam"
	"github.com/aretw0/flowtalk/pkg/adapters/multi"
	"github.com/aretw0/flowtalk/pkg/adapters/redis"
	"github.com/aretw0/flowtalk/pkg/adapters/sqlite"
	"github.com/aretw0/flowtalk/pkg/observability"
	"github.com/aretw0/flowtalk/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Flow sources selectable with --source.
const (
	SourceFile = "file"
	SourceLoam = "loam"
)

// Config is what the persistent flags configure.
type Config struct {
	Dir       string
	Source    string
	RedisAddr string
	Journal   string
	LogLevel  string
}

// Catalog lists the flows available to start.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
}

// Stack is the assembled application shared by every command.
type Stack struct {
	Logger   *slog.Logger
	Catalog  Catalog
	Loader   *multi.Router
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Streams  *flowhttp.StreamManager
	Journal  *sqlite.Journal

	closers []func() error
}

// Build wires loaders, observers and the session manager from cfg.
// Flows are looked up in cfg.Dir; "file:", "loam:" and (with a Redis
// address) "redis:" locators reach a specific backend.
func Build(cfg Config) (*Stack, error) {
	s := &Stack{
		Logger:   logging.New(logging.ParseLevel(cfg.LogLevel)),
		Registry: prometheus.NewRegistry(),
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	files := file.New(cfg.Dir)
	routes := []multi.Option{multi.WithLoader(SourceFile, files)}

	switch cfg.Source {
	case "", SourceFile:
		s.Catalog = files
		routes = append(routes, multi.WithFallback(files))
	case SourceLoam:
		docs, err := loam.Open(cfg.Dir)
		if err != nil {
			return nil, err
		}
		s.Catalog = docs
		routes = append(routes, multi.WithLoader(SourceLoam, docs), multi.WithFallback(docs))
	default:
		return nil, fmt.Errorf("unknown source %q (want %s or %s)", cfg.Source, SourceFile, SourceLoam)
	}

	mgrOpts := []session.Option{session.WithLogger(s.Logger)}

	if cfg.RedisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: cfg.RedisAddr})
		s.closers = append(s.closers, client.Close)
		routes = append(routes, multi.WithLoader("redis", redis.NewFromClient(client)))
		mgrOpts = append(mgrOpts, session.WithLocker(redis.NewLocker(client, "flowtalk:")))
	}
	s.Loader = multi.New(routes...)

	s.Registry.MustRegister(collectors.NewGoCollector())
	metrics, err := observability.NewMetrics(s.Registry)
	if err != nil {
		return nil, s.fail(err)
	}
	s.Metrics = metrics
	mgrOpts = append(mgrOpts,
		session.WithObserver(metrics.Observer()),
		session.WithLifecycle(metrics),
	)

	if s.Logger.Enabled(context.Background(), slog.LevelDebug) {
		mgrOpts = append(mgrOpts, session.WithObserver(observability.NewLogObserver(s.Logger)))
	}

	s.Streams = flowhttp.NewStreamManager(s.Logger)
	mgrOpts = append(mgrOpts, session.WithSessionObserver(s.Streams.Observer))

	if cfg.Journal != "" {
		journal, err := sqlite.Open(cfg.Journal, sqlite.WithLogger(s.Logger))
		if err != nil {
			return nil, s.fail(err)
		}
		s.Journal = journal
		s.closers = append(s.closers, journal.Close)
		mgrOpts = append(mgrOpts, session.WithSessionObserver(journal.Observer))
	}

	s.Sessions = session.NewManager(s.Loader, mgrOpts...)
	return s, nil
}

func (s *Stack) fail(err error) error {
	return errors.Join(err, s.Close())
}

// Close releases the Redis client and the journal.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
