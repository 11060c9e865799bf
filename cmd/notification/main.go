// 通知サービスのエントリポイント。
// ユーザーごとの通知リストを兄弟を返し得るKVSに保存し、
// 読み込み時にマージとロールアップを行うHTTP APIを提供する。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/notifyhub/internal/config"
	"github.com/nao1215/notifyhub/internal/notification"
	"github.com/nao1215/notifyhub/internal/rules"
	"github.com/nao1215/notifyhub/pkg/ids"
	"github.com/nao1215/notifyhub/pkg/logger"
	"github.com/nao1215/notifyhub/pkg/store"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("NOTIFYHUB_CONFIG"), "設定ファイルのパス（省略可）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("通知サービスの起動に失敗", zap.Error(err))
	}
}

// run は依存を組み立ててサーバーを起動し、ctxが終了するまで待つ。
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	kv, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	ruleStore, err := rules.OpenSQLite(cfg.SQLite.Path, log)
	if err != nil {
		return errors.Wrap(err, "open rule store")
	}
	defer ruleStore.Close()

	gen, err := ids.NewSnowflake(cfg.NodeID, nil)
	if err != nil {
		return err
	}

	repo := notification.NewRepository(kv)
	applier := notification.NewApplier(repo, log)

	var submitter notification.Submitter
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(fmt.Sprintf("notifyhub-%d", cfg.NodeID)),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(500*time.Millisecond),
		)
		if err != nil {
			return errors.Wrapf(err, "connect nats %s", cfg.NATS.URL)
		}
		defer nc.Drain() //nolint:errcheck

		consumer := notification.NewConsumer(nc, cfg.NATS.Subject, "notifyhub", applier, log)
		if err := consumer.Start(); err != nil {
			return err
		}
		defer consumer.Stop() //nolint:errcheck
		submitter = notification.NewNATSSubmitter(nc, cfg.NATS.Subject)
		log.Info("書き込みはNATS経由で反映します", zap.String("subject", cfg.NATS.Subject))
	} else {
		local := notification.NewLocalSubmitter(applier, cfg.WriteQueueSize, log)
		defer local.Close()
		submitter = local
		log.Info("書き込みはプロセス内のワーカーで反映します", zap.Int("queue_size", cfg.WriteQueueSize))
	}

	svc := notification.NewService(notification.ServiceDeps{
		Repository: repo,
		Submitter:  submitter,
		IDs:        gen,
		Rules:      rules.NewCache(ruleStore, cfg.RuleCacheTTL, nil, log),
		RuleStore:  ruleStore,
		Logger:     log,
	})
	server := notification.NewServer(notification.ServerConfig{
		Port:        cfg.Port,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	}, svc, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("通知サービスを起動します", zap.String("port", cfg.Port), zap.String("store", cfg.Store.Backend))
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("通知サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore は設定に応じたバックエンドのストアを開く。
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client, err := store.NewRedisClient(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr))
		return store.NewRedisStore(client, cfg.Redis.Prefix), func() { client.Close() }, nil
	default:
		log.Warn("メモリストアを使用します。再起動で通知は失われます")
		return store.NewMemoryStore(), func() {}, nil
	}
}
