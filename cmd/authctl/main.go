// Command authctl inspects and resets the session cache of a device
// database.
//
//	authctl state      print the cached auth state
//	authctl init       reconcile the cache with the identity provider
//	authctl validate   check the cache against the identity provider
//	authctl signout    sign out and clear the cache
//	authctl clear      clear the cache without contacting any remote
//	authctl watch      run the activity monitor until it logs out
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-print"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
	"github.com/jayanthbabu123/water-delivery-app-sub000/adapters/metrics"
	"github.com/jayanthbabu123/water-delivery-app-sub000/docstore"
	"github.com/jayanthbabu123/water-delivery-app-sub000/kvstore"
	"github.com/jayanthbabu123/water-delivery-app-sub000/provider/idtoken"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: authctl [state|init|validate|signout|clear|watch]")
	}
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "state"
	}

	cfg := LoadConfig()
	base, err := newZap(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		return 1
	}
	defer base.Sync()
	provider := loggerProvider(base)
	logger := provider.GetLogger("authctl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := setup(ctx, cfg, provider, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		return 1
	}
	defer cleanup()

	switch cmd {
	case "state":
		fmt.Println(print.MaybePrettyJSON(app.service.GetAuthState(ctx)))
	case "init":
		fmt.Println(print.MaybePrettyJSON(app.service.InitializeAuth(ctx)))
	case "validate":
		fmt.Println(print.MaybePrettyJSON(app.service.ValidateSession(ctx)))
	case "signout":
		if err := app.service.SignOut(ctx, auth.ReasonUserSignOut); err != nil {
			logger.Error("sign out failed", "error", err)
			return 1
		}
		fmt.Println(print.MaybePrettyJSON(app.service.GetAuthState(ctx)))
	case "clear":
		if err := app.service.ClearSession(ctx); err != nil {
			logger.Error("clear failed", "error", err)
			return 1
		}
	case "watch":
		return watch(ctx, cfg, app, provider)
	default:
		flag.Usage()
		return 2
	}
	return 0
}

type application struct {
	kv      auth.KeyValueStore
	service *auth.AuthService
}

func setup(ctx context.Context, cfg Config, provider auth.LoggerProvider, logger auth.Logger) (*application, func(), error) {
	db, err := kvstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = db.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	kv := kvstore.NewBunStore(db)
	if err := kv.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	users := docstore.NewUserRepository(db)
	if err := users.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	identities, stopJWKS, err := identityProvider(cfg, provider.GetLogger("auth.idtoken"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, stopJWKS)

	service := auth.NewAuthService(
		identities,
		docstore.NewCached(users, docstore.DefaultCacheSize, docstore.DefaultCacheTTL),
		kv,
		auth.WithLoggerProvider(provider),
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithPhoneRegion(cfg.PhoneRegion),
		auth.WithActivitySink(metrics.NewSink()),
	)

	logger.Debug("authctl ready", "db", cfg.DBPath, "ttl", cfg.SessionTTL.String())
	return &application{kv: kv, service: service}, cleanup, nil
}

// identityProvider verifies AUTH_ID_TOKEN against AUTH_JWKS_URL. Without a
// JWKS endpoint the provider holds no identity.
func identityProvider(cfg Config, logger auth.Logger) (*idtoken.Provider, func(), error) {
	if cfg.JWKSURL == "" {
		return idtoken.NewProvider(nil, idtoken.WithLogger(logger)), func() {}, nil
	}

	p, stop, err := idtoken.NewJWKSProvider(cfg.JWKSURL, idtoken.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if cfg.IDToken != "" {
		if _, err := p.SetToken(cfg.IDToken); err != nil {
			logger.Warn("ignoring id token", "error", err)
		}
	}
	return p, stop, nil
}

func watch(ctx context.Context, cfg Config, app *application, provider auth.LoggerProvider) int {
	done := make(chan auth.LogoutEvent, 1)
	monitor := auth.NewActivityMonitor(app.service,
		auth.WithInactivityTimeout(cfg.InactivityTimeout),
		auth.WithMonitorStore(app.kv),
		auth.WithMonitorLogger(provider.GetLogger("auth.monitor")),
		auth.WithLogoutHandler(func(ev auth.LogoutEvent) {
			select {
			case done <- ev:
			default:
			}
		}),
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0
		case ev := <-done:
			fmt.Println(print.MaybePrettyJSON(ev))
			return 0
		case <-ticker.C:
			provider.GetLogger("authctl").Info("monitor state",
				"state", string(monitor.State()),
				"last_activity", monitor.LastActivityAt().Format(time.RFC3339),
			)
		}
	}
}
