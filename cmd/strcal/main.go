package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strcal/internal/backend"
	"strcal/internal/colors"
	"strcal/internal/config"
	"strcal/internal/gcal"
	"strcal/internal/ics"
	appLog "strcal/internal/log"
	"strcal/internal/pgsource"
	"strcal/internal/refresh"
	"strcal/internal/schedule"
	"strcal/internal/source"
	"strcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	cacheDir   string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("strcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"backend", conf.Backend.BaseURL != "",
		"feeds", len(conf.Feeds),
		"recurring_tasks", len(conf.RecurringTasks),
		"google_calendar", conf.GoogleCalendar.Enabled,
		"database", conf.Database.URL != "",
		"snapshot", conf.Snapshot.Enabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	collector, closeSources, err := buildCollector(ctx, conf, flags.cacheDir)
	if err != nil {
		appLog.Error("failed to initialize sources", err)
		os.Exit(1)
	}
	defer closeSources()

	store, err := colors.NewStore(config.Validator(), conf.Colors)
	if err != nil {
		appLog.Error("invalid color assignments", err)
		os.Exit(1)
	}

	srv := web.NewServer(conf, collector, store, flags.debug)
	if conf.GoogleCalendar.Enabled {
		// The token written by the consent flow takes effect without a restart.
		srv.OnGoogleAuthorized(func() error {
			gs, err := gcal.NewSource(ctx, conf.GoogleCalendar, conf.Location())
			if err != nil {
				return err
			}
			collector.ReplaceBookings(gs)
			appLog.Info("google calendar source registered", "sources", collector.Sources())
			return nil
		})
	}
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	job := refresh.NewJob(srv, conf, pageURL(conf.Listen))

	if flags.once {
		err := job.RunOnce(ctx)
		shutdown(httpSrv)
		if err != nil {
			appLog.Error("refresh cycle failed", err)
			os.Exit(1)
		}
		appLog.Info("strcal exiting")
		return
	}

	c, err := refresh.Start(ctx, conf.RefreshCron, conf.Location(), job)
	if err != nil {
		appLog.Error("failed to schedule refresh", err)
		os.Exit(1)
	}
	go func() {
		if err := job.RunOnce(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			appLog.Error("http server failed", err)
		}
	}

	<-c.Stop().Done()
	shutdown(httpSrv)
	appLog.Info("strcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/strcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "/var/cache/strcal", "Directory for the ICS feed cache")
	flag.BoolVar(&cfg.once, "once", false, "Run one warm-up (+snapshot) cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging and gin debug mode")

	flag.Parse()

	return cfg
}

// buildCollector registers every configured source. The backend goes first
// so its records win over feed copies of the same booking.
func buildCollector(ctx context.Context, conf *config.Config, cacheDir string) (*source.Collector, func(), error) {
	loc := conf.Location()
	c := source.NewCollector()
	closers := []func(){}
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	if conf.Backend.BaseURL != "" {
		bs := backend.NewSource(backend.NewClient(conf.Backend.BaseURL, conf.Backend.Token, conf.Backend.Timeout()), loc)
		c.AddBookings(bs).AddTasks(bs)
	}

	if conf.Database.URL != "" {
		pg, err := pgsource.Open(ctx, conf.Database.URL, loc)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, pg.Close)
		c.AddBookings(pg).AddTasks(pg)
	}

	if len(conf.Feeds) > 0 {
		feeds := make([]ics.Feed, 0, len(conf.Feeds))
		for _, f := range conf.Feeds {
			feeds = append(feeds, ics.Feed{
				ID:           f.ID,
				PropertyID:   f.PropertyID,
				PropertyName: f.PropertyName,
				Channel:      f.Channel,
				URL:          f.URL,
				CheckInTime:  f.CheckInTime,
				CheckOutTime: f.CheckOutTime,
			})
		}
		c.AddBookings(ics.NewSource(ics.NewFetcher(cacheDir, nil), feeds, loc))
	}

	if conf.GoogleCalendar.Enabled {
		gs, err := gcal.NewSource(ctx, conf.GoogleCalendar, loc)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			appLog.Warn("google calendar not authorized yet; visit /api/gcal/auth", "token_file", conf.GoogleCalendar.TokenFile)
		case err != nil:
			appLog.Error("google calendar source disabled", err)
		default:
			c.AddBookings(gs)
		}
	}

	if len(conf.RecurringTasks) > 0 {
		c.AddTasks(schedule.NewSource(conf.RecurringTasks, loc))
	}

	appLog.Info("sources registered", "sources", c.Sources())
	return c, closeAll, nil
}

// pageURL is where the headless browser reaches this server's /calendar.
func pageURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/calendar"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/calendar"
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
}
