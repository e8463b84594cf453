package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sauravnith/swirly/api/grpcserver"
	"github.com/sauravnith/swirly/config"
	"github.com/sauravnith/swirly/infra/events"
	"github.com/sauravnith/swirly/infra/kafka"
	"github.com/sauravnith/swirly/infra/logging"
	"github.com/sauravnith/swirly/infra/outbox"
	"github.com/sauravnith/swirly/infra/refdata"
	"github.com/sauravnith/swirly/infra/store"
	"github.com/sauravnith/swirly/infra/wal"
	"github.com/sauravnith/swirly/jobs/broadcaster"
	"github.com/sauravnith/swirly/service"
)

const haltPoll = 500 * time.Millisecond

type journal interface {
	service.Journal
	service.StateReader
	Close() error
}

func main() {
	os.Exit(run())
}

// run returns the process exit code. Background jobs are joined before any
// deferred Close runs.
func run() int {
	cfg, err := config.Load(os.Getenv("SWIRLY_ENV_FILE"))
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.LogFile != "" {
		logger, err = logging.NewWithFile(cfg.LogFile, cfg.LogLevel)
	} else {
		logger, err = logging.New(cfg.LogLevel)
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("config_loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Reference data ----------------

	ref, err := refdata.Load(cfg.RefData)
	if err != nil {
		sugar.Fatalw("refdata_load_failed", "path", cfg.RefData, "err", err)
	}

	// ---------------- Journal ----------------

	var (
		j   journal
		wlj *wal.Journal
	)
	switch cfg.Journal {
	case config.JournalWAL:
		wlj, err = wal.Open(wal.Config{
			Dir:         filepath.Join(cfg.DataDir, "wal"),
			SegmentSize: cfg.WALSegmentBytes,
			IDBlock:     cfg.IDBlock,
		}, logger.Named("wal"))
		j = wlj
	default:
		j, err = store.Open(filepath.Join(cfg.DataDir, "store"), cfg.IDBlock, logger.Named("store"))
	}
	if err != nil {
		sugar.Fatalw("journal_open_failed", "journal", cfg.Journal, "err", err)
	}
	defer j.Close()

	// ---------------- Sinks ----------------

	enc := events.NewEncoder()
	var sinks service.Sinks
	var box *outbox.Outbox
	if cfg.KafkaEnabled() {
		box, err = outbox.Open(filepath.Join(cfg.DataDir, "outbox"))
		if err != nil {
			sugar.Fatalw("outbox_open_failed", "err", err)
		}
		defer box.Close()

		views := kafka.NewProducer(cfg.KafkaBrokers, cfg.ViewTopic, true, logger.Named("views"))
		defer views.Close()

		sinks = append(sinks,
			outbox.NewSink(box, enc.Exec),
			kafka.NewViewSink(views, enc.View, time.Second),
		)
	} else {
		sugar.Info("kafka_disabled - execs and views are not published")
	}

	// ---------------- Exchange ----------------

	x := service.NewExchange(j, sinks, logger.Named("exchange"))
	start := time.Now()
	if err := x.Load(struct {
		*refdata.RefData
		service.StateReader
	}{ref, j}); err != nil {
		sugar.Fatalw("exchange_load_failed", "err", err)
	}
	sugar.Infow("exchange_loaded", "elapsed", time.Since(start))

	srv := grpcserver.NewServer(x, logger.Named("grpc"))

	// ---------------- Background jobs ----------------

	var jobs sync.WaitGroup
	defer jobs.Wait()

	if box != nil {
		bc, err := broadcaster.New(box, cfg.KafkaBrokers, cfg.ExecTopic, cfg.BroadcastRetries, logger.Named("broadcaster"))
		if err != nil {
			sugar.Fatalw("broadcaster_init_failed", "err", err)
		}
		defer bc.Close()
		done := bc.Start(ctx, cfg.BroadcastEvery)
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			<-done
		}()
	}

	if wlj != nil {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			wal.RunCheckpoints(cfg.CheckpointEvery, ctx.Done(), func() error {
				return srv.Do(func(*service.Exchange) error { return wlj.Checkpoint() })
			}, logger.Named("checkpoint"))
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		sugar.Fatalw("listen_failed", "addr", cfg.GRPCAddr, "err", err)
	}

	grpcSrv := grpc.NewServer()
	grpcserver.Register(grpcSrv, srv)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	halted := make(chan error, 1)
	jobs.Add(1)
	go func() {
		defer jobs.Done()
		watchHalt(ctx, srv, halted)
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcSrv.Serve(lis) }()
	sugar.Infow("server_started", "addr", cfg.GRPCAddr, "journal", cfg.Journal)

	exitCode := 0
	select {
	case <-ctx.Done():
		sugar.Info("shutdown_requested")
	case err := <-halted:
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		sugar.Errorw("exchange_halted", "err", err)
		exitCode = 1
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			sugar.Errorw("grpc_serve_failed", "err", err)
			exitCode = 1
		}
	}

	hs.Shutdown()
	grpcSrv.GracefulStop()
	stop()
	jobs.Wait()
	sugar.Infow("server_stopped", "exit_code", exitCode)
	return exitCode
}

// watchHalt reports the first halt error observed on the exchange.
func watchHalt(ctx context.Context, srv *grpcserver.Server, halted chan<- error) {
	ticker := time.NewTicker(haltPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.Do((*service.Exchange).Halted); err != nil {
				halted <- err
				return
			}
		}
	}
}
