package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	auth "github.com/caffeine-addictt/greenbitessg-sub000"
	"github.com/caffeine-addictt/greenbitessg-sub000/activitymap"
	"github.com/caffeine-addictt/greenbitessg-sub000/config"
	"github.com/caffeine-addictt/greenbitessg-sub000/passkey"
)

// app owns every long lived resource of the process
type app struct {
	cfg     *config.Config
	logger  *auth.SlogLogger
	db      *bun.DB
	repo    auth.RepositoryManager
	auther  *auth.Auther
	engine  *passkey.Engine
	sweeper *auth.Sweeper
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := auth.NewSlogLogger(cfg.Log.NewLogger())

	db, dialect, err := auth.OpenDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := auth.Migrate(ctx, db.DB, dialect); err != nil {
		db.Close()
		return nil, err
	}

	codec, err := auth.NewTokenCodec(cfg.Tokens)
	if err != nil {
		db.Close()
		return nil, err
	}
	codec.WithLogger(logger)

	var mailer auth.Mailer = auth.LogMailer{Logger: logger}
	if cfg.Mail.SMTP.Host != "" {
		mailer = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			From:     cfg.Mail.From,
		})
	}

	notifier, err := auth.NewNotifier(mailer, cfg.Mail)
	if err != nil {
		db.Close()
		return nil, err
	}

	verifier, err := passkey.NewWebAuthnVerifier(passkey.RelyingParty{
		ID:          cfg.Passkey.RPID,
		DisplayName: cfg.Passkey.RPDisplayName,
		Origins:     cfg.Passkey.Origins,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	activity := auth.ActivitySinkFunc(func(ctx context.Context, e auth.ActivityEvent) error {
		record := activitymap.Normalize(e)
		logger.Slog().InfoContext(ctx, "activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object", record.ObjectType+":"+record.ObjectID,
			"metadata", record.Metadata,
		)
		return nil
	})

	repo := auth.NewRepositoryManager(db, auth.SystemClock())
	repo.MustValidate()

	auther := auth.NewAuthenticator(repo, codec, auth.NewPasswordHasher(cfg.Password.Iterations)).
		WithLogger(logger).
		WithNotifier(notifier).
		WithActivitySink(activity)

	engine := passkey.NewEngine(repo, codec, verifier).
		WithLogger(logger).
		WithChallengeTTL(cfg.Passkey.ChallengeTTL).
		WithActivitySink(activity)

	sweeper := auth.NewSweeper(cfg.Sweeper.Interval, auth.RepositorySweepTasks(repo, engine.ChallengeTTL())...).
		WithLogger(logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		repo:    repo,
		auther:  auther,
		engine:  engine,
		sweeper: sweeper,
	}, nil
}

func (a *app) server() router.Server[*fiber.App] {
	srv := auth.NewHTTPServer("authd", a.logger)

	controller := auth.NewAuthController(a.auther,
		auth.WithControllerLogger(a.logger),
		auth.WithRoutePrefix(a.cfg.Server.Prefix),
		auth.WithSweeper(a.sweeper),
		auth.WithDebug(a.cfg.Server.Debug),
	)

	auth.RegisterAuthRoutes(srv.Router(), controller, passkey.NewController(a.engine))

	return srv
}

func (a *app) close() {
	a.sweeper.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database: %v", err)
	}
}
