package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatewatch/gatewatch/action"
	"github.com/gatewatch/gatewatch/config"
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/feed"
	"github.com/gatewatch/gatewatch/fusion"
	"github.com/gatewatch/gatewatch/ingest"
	"github.com/gatewatch/gatewatch/kafkaout"
	"github.com/gatewatch/gatewatch/loadshed"
	"github.com/gatewatch/gatewatch/logger"
	"github.com/gatewatch/gatewatch/observability"
	"github.com/gatewatch/gatewatch/query"
	"github.com/gatewatch/gatewatch/redischeck"
	"github.com/gatewatch/gatewatch/router"
	"github.com/gatewatch/gatewatch/scheduler"
	"github.com/gatewatch/gatewatch/sink"
	"github.com/gatewatch/gatewatch/state"
	"github.com/gatewatch/gatewatch/workers"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("gatewatch detection core starting")

	store := state.NewStore(cfg.ShardCount, cfg.RetentionWindow, cfg.BucketRetention)
	gate := action.NewGate(store, cfg.AlertCooldown, cfg.TakedownMinClusterSize)
	thresholds := fusion.Thresholds{Medium: cfg.MediumThreshold, High: cfg.HighThreshold, Critical: cfg.CriticalThreshold}
	queryService := query.NewService(store)

	fileSink, err := sink.NewFileSink(cfg.SinkDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open output sink")
	}
	defer fileSink.Close()

	var kafkaWriter *kafkaout.Writer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaWriter = kafkaout.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaWriter.Close()
	}

	var feedGen *feed.Generator
	if cfg.FeedSigningKey != "" {
		feedGen = feed.NewGenerator(cfg.FeedProviderID, []byte(cfg.FeedSigningKey))
	}

	shedder := loadshed.New(store, loadshed.DefaultWatermarks)

	metrics := observability.NewMetrics(log)
	tracer := observability.NewTracer(log, observability.NewLogExporter(log), 1.0)
	defer tracer.Stop()

	var persistence *redischeck.Persistence
	if cfg.RedisURL != "" {
		persistence, err = redischeck.New(cfg.RedisURL, store, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis checkpoint init failed — continuing without persistence")
			persistence = nil
		} else if pingErr := persistence.Ping(context.Background()); pingErr != nil {
			log.Warn().Err(pingErr).Msg("redis ping failed — continuing without persistence")
			persistence = nil
		} else {
			if err := persistence.RestoreCanaries(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to restore canary registry from redis")
			}
			log.Info().Msg("redis checkpoint adapter connected")
		}
	}

	rtr := router.New(router.Config{
		OperatorToken:  cfg.OperatorToken,
		RateLimitRPM:   cfg.ConsoleRateLimitRPM,
		RateLimitBurst: cfg.ConsoleRateLimitBurst,
	}, router.Deps{
		Store:        store,
		QueryService: queryService,
		Gate:         gate,
		FeedGen:      feedGen,
		Metrics:      metrics,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      rtr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(log)
	sched.AddJob("housekeeping", "*/5 * * * *", func(ctx context.Context) error {
		store.ExpireOld(time.Now().UTC())
		store.PruneTimingBuckets(time.Now().UTC())
		metrics.TrackClusterState(store.NClusters(), store.NAccounts())
		return nil
	})
	if persistence != nil {
		sched.AddJob("redis-checkpoint", "*/5 * * * *", func(ctx context.Context) error {
			return persistence.SaveCheckpoint(ctx)
		})
	}
	sched.Start()
	defer sched.Stop()

	if cfg.IngestPath != "" {
		src := ingest.NewSource(cfg.IngestPath, log)
		go func() {
			if err := src.Run(ctx); err != nil {
				log.Error().Err(err).Msg("ingest source exited")
			}
		}()
		go runPipeline(ctx, src.Events, store, gate, thresholds, fileSink, kafkaWriter, feedGen, persistence, rtr, metrics, tracer, shedder, log)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gatewatch console API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("gatewatch stopped gracefully")
	}
}

// runPipeline is the core's per-event loop: ingest into state, run every
// worker concurrently, fuse the signals into a decision, dispatch through
// the action gate, and publish the result to every configured output
// adapter. It is the synchronous backbone the ingest channel feeds.
func runPipeline(
	ctx context.Context,
	incoming <-chan events.Event,
	store *state.Store,
	gate *action.Gate,
	thresholds fusion.Thresholds,
	fileSink *sink.FileSink,
	kafkaWriter *kafkaout.Writer,
	feedGen *feed.Generator,
	persistence *redischeck.Persistence,
	rtr http.Handler,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	shedder *loadshed.Shedder,
	log zerolog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-incoming:
			if !ok {
				return
			}
			if priority, admitted := shedder.Admit(ev); !admitted {
				log.Warn().Str("account_id", ev.AccountID).Str("priority", priority.String()).Msg("event shed under load")
				continue
			}
			if err := processEvent(ctx, ev, store, gate, thresholds, fileSink, kafkaWriter, feedGen, persistence, rtr, metrics, tracer); err != nil {
				log.Error().Err(err).Str("account_id", ev.AccountID).Msg("failed to process event")
			}
		}
	}
}

func processEvent(
	ctx context.Context,
	ev events.Event,
	store *state.Store,
	gate *action.Gate,
	thresholds fusion.Thresholds,
	fileSink *sink.FileSink,
	kafkaWriter *kafkaout.Writer,
	feedGen *feed.Generator,
	persistence *redischeck.Persistence,
	rtr http.Handler,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) error {
	traceID, ingestSpan := tracer.StartTrace(ev.RequestID)
	ingestSpan.SetAttribute("account_id", ev.AccountID)
	metrics.TrackEvent(ev.Model)

	store.Ingest(ev)
	tracer.EndSpan(ingestSpan)

	workersSpan := tracer.StartSpan("workers", traceID)
	signalStart := time.Now()
	signals := workers.RunAll(store, ev)
	workerLatencyMs := float64(time.Since(signalStart).Microseconds()) / 1000.0
	for _, sig := range signals {
		metrics.TrackWorkerSignal(string(sig.Worker), sig.Score > 0, workerLatencyMs)
	}
	tracer.EndSpan(workersSpan)

	fusionSpan := tracer.StartSpan("fusion", traceID)
	decision, fired := fusion.Fuse(store, ev, signals, thresholds)
	tracer.EndSpan(fusionSpan)
	if fired {
		metrics.TrackDecision(string(decision.Tier), decision.CompositeScore)
	}
	if !fired || !gate.ShouldAlert(ev.AccountID, ev.Timestamp) {
		return nil
	}

	actionSpan := tracer.StartSpan("action", traceID)
	defer tracer.EndSpan(actionSpan)

	enforcement, bundle := gate.Dispatch(decision, ev.RequestID, ev.Timestamp)
	metrics.TrackEnforcement(string(enforcement.ActionType), bundle != nil)
	if err := fileSink.WriteAction(enforcement); err != nil {
		return err
	}

	if kafkaWriter != nil {
		_ = kafkaWriter.Publish(ctx, enforcement)
	}
	if enforcement.CanaryToken != nil && persistence != nil {
		_ = persistence.SaveCanary(ctx, *enforcement.CanaryToken)
	}
	if bundle != nil {
		if err := fileSink.WriteIndicatorBundle(*bundle); err != nil {
			return err
		}
		if feedGen != nil {
			_, _ = feedGen.Add(*bundle, ev.Timestamp)
		}
	}

	router.Publish(rtr, decision)
	return nil
}
