package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"

	vertexclient "github.com/GregMSThompson/household-ledger/internal/client/vertex"
	"github.com/GregMSThompson/household-ledger/internal/config"
	"github.com/GregMSThompson/household-ledger/internal/events"
	"github.com/GregMSThompson/household-ledger/internal/metrics"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/services"
	"github.com/GregMSThompson/household-ledger/internal/store"
	"github.com/GregMSThompson/household-ledger/internal/store/sqlstore"
	"github.com/GregMSThompson/household-ledger/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

type Bootstrap struct {
	Log           *slog.Logger
	Location      *time.Location
	Firestore     *firestore.Client
	Firebase      *auth.Client
	Store         services.Store
	Verifier      middleware.IdentityVerifier
	VertexAdapter *vertexclient.Adapter
	Publisher     Publisher
	Metrics       *metrics.Metrics

	closers []io.Closer
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.HandlerFor(cfg.LogFormat))
	if err = cfg.Validate(); err != nil {
		return bs, err
	}
	bs.Location = cfg.Location()

	if err = bs.initStore(applicationCtx, cfg); err != nil {
		return bs, err
	}
	if err = bs.initAuth(applicationCtx, cfg); err != nil {
		return bs, err
	}

	if cfg.VertexModel != "" {
		bs.VertexAdapter, err = vertexclient.NewAdapter(applicationCtx, bs.Log, cfg.ProjectID, cfg.Region, cfg.VertexModel)
		if err != nil {
			return bs, fmt.Errorf("vertex: %w", err)
		}
		bs.closers = append(bs.closers, bs.VertexAdapter)
	} else {
		bs.Log.Warn("VERTEXMODEL not set, assistant disabled")
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return bs, err
		}
		bs.Publisher = pub
		bs.closers = append(bs.closers, pub)
	} else {
		bs.Publisher = events.Noop{}
	}

	if cfg.MetricsEnabled {
		bs.Metrics = metrics.New()
	}

	bs.Log.Info("bootstrap complete",
		"store", cfg.StoreBackend,
		"auth", cfg.AuthProvider,
		"timezone", bs.Location.String(),
		"events", cfg.AMQPURL != "",
	)
	return bs, nil
}

func (bs *Bootstrap) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := sqlstore.New(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		bs.Store = s
		bs.closers = append(bs.closers, s)
	default:
		client, err := InitFirestore(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("firestore: %w", err)
		}
		bs.Firestore = client
		bs.Store = store.New(client)
		bs.closers = append(bs.closers, client)
	}
	return nil
}

func (bs *Bootstrap) initAuth(ctx context.Context, cfg *config.Config) error {
	switch cfg.AuthProvider {
	case config.AuthFirebase:
		client, err := InitFirebase(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("firebase: %w", err)
		}
		bs.Firebase = client
		bs.Verifier = middleware.NewFirebaseVerifier(client)
	default:
		token := cfg.TelegramBotToken
		if token == "" {
			var err error
			token, err = LoadSecret(ctx, cfg.ProjectID, cfg.TelegramBotTokenSecret)
			if err != nil {
				return fmt.Errorf("telegram bot token: %w", err)
			}
		}
		bs.Verifier = middleware.NewTelegramVerifier(token, cfg.TelegramAuthMaxAge)
	}
	return nil
}

// Close releases every client opened by Run, newest first.
func (bs *Bootstrap) Close() error {
	var errList []error
	for i := len(bs.closers) - 1; i >= 0; i-- {
		if err := bs.closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	bs.closers = nil
	return errors.Join(errList...)
}
