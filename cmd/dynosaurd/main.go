package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/daemon"
	"dynosaur/fetcher"
	"dynosaur/log"
	"dynosaur/updater"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	configPath = flag.StringP("config", "c", "config.toml", "path to config file")
	debug      = flag.Bool("debug", false, "enable debug output")
	once       = flag.Bool("once", false, "run a single reconciliation and exit")
	list       = flag.Bool("list", false, "print the provider's records for the configured name and exit")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

func init() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		os.Exit(0)
	}
}

func getInitLogger() context.Context {
	logger, err := log.Bootstrap(*debug)
	if err != nil {
		fmt.Printf("Failed creating logger: %v\n", err)
		os.Exit(1)
	}

	return log.WithLogger(context.Background(), logger)
}

// promptToken asks for the API token on the terminal when the config leaves it empty.
func promptToken(ctx context.Context, conf *config.Config) {
	if conf.Updater.Type != "cloudflare" {
		return
	}
	if token, _ := conf.Updater.Config["api_token"].(string); token != "" {
		return
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	fmt.Fprint(os.Stderr, "Cloudflare API token: ")
	token, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.S(ctx).Fatalw("failed reading API token", zap.Error(err))
	}

	if conf.Updater.Config == nil {
		conf.Updater.Config = map[string]any{}
	}
	conf.Updater.Config["api_token"] = strings.TrimSpace(string(token))
}

func serveMetrics(ctx context.Context, c config.Metrics, reg *prometheus.Registry) {
	path := c.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: c.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.S(ctx).Infow("metrics listening", "listen", c.Listen, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.S(ctx).Errorw("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func main() {
	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("dynosaurd starting", "variant", "release", "build_date", buildDate)
	} else {
		log.S(ctx).Infow("dynosaurd starting", "variant", "debug")
	}

	conf, err := config.Load(*configPath)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", zap.Error(err))
	}

	if conf.Service.Name != "" {
		updater.DefaultMark += "-" + conf.Service.Name
	}

	logger, err := log.Build(*debug, conf.Log, conf.Service.Name)
	if err != nil {
		log.S(ctx).Fatalw("cannot build real logger", zap.Error(err))
	}
	defer logger.Sync()
	ctx = log.WithLogger(context.Background(), logger)

	ctx = common.WithHTTPClient(ctx, common.NewHTTPClient(time.Duration(conf.HTTP.Timeout), conf.HTTP.UserAgent))

	promptToken(ctx, conf)

	subject := updater.NewSubjectRecord(conf.Record.Type, conf.Record.Name, conf.Record.TTL.Std())

	reconciler, err := updater.New(ctx, conf.Updater)
	if err != nil {
		log.S(ctx).Fatalw("cannot init updater", zap.Error(err))
	}

	if *list {
		records, err := reconciler.Find(ctx, subject)
		if err != nil {
			log.S(ctx).Fatalw("failed listing records", zap.Error(err))
		}
		updater.PrintRecords(os.Stdout, records)
		return
	}

	chain, err := fetcher.NewChain(ctx, conf.Fetcher)
	if err != nil {
		log.S(ctx).Fatalw("cannot init fetcher", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	interval := time.Duration(conf.Service.Interval)
	if *once || interval <= 0 {
		// New rejects a zero interval; single-shot mode never ticks.
		interval = time.Minute
	}

	var opts []daemon.Option
	if conf.Service.Immediate {
		opts = append(opts, daemon.WithImmediateStart())
	}

	var reg *prometheus.Registry
	if conf.Metrics.Listen != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, daemon.WithMetrics(reg))
	}

	d, err := daemon.New(interval, subject, chain, reconciler, conf.Service.ExitOnError, opts...)
	if err != nil {
		log.S(ctx).Fatalw("cannot init daemon", zap.Error(err))
	}

	if *once || conf.Service.Interval <= 0 {
		if err := d.RunOnce(ctx); err != nil {
			log.S(ctx).Errorw("reconciliation failed", zap.Error(err))
			if conf.Service.ExitOnError {
				os.Exit(1)
			}
		}
		return
	}

	if reg != nil {
		serveMetrics(ctx, conf.Metrics, reg)
	}

	if err := d.Run(ctx); err != nil {
		log.S(ctx).Errorw("daemon exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	log.S(ctx).Infow("dynosaurd stopped")
}
