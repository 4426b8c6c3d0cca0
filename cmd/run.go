package cmd

import (
	"context"
	"time"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/internal/version"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/questboard/pkg/logger"
	"github.com/Layr-Labs/questboard/pkg/metrics/prometheus"
	"github.com/Layr-Labs/questboard/pkg/rpcServer"
	"github.com/Layr-Labs/questboard/pkg/settlementQueue"
	"github.com/Layr-Labs/questboard/pkg/shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the quest board with its HTTP API and settlement scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		bindSubcommandFlags(cmd)
		cfg := config.NewConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		l.Sugar().Infow("questboard",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("database", string(cfg.DatabaseConfig.Driver)),
		)

		svc, err := newServices(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer svc.Close(l)

		logBoardEvents(ctx, svc, l)

		sq := settlementQueue.NewSettlementQueue(svc.board, svc.operator, svc.clock, svc.sink, l)
		go sq.Process(ctx)

		if cfg.SchedulerConfig.Enabled {
			scheduler := settlementQueue.NewScheduler(&settlementQueue.SchedulerConfig{
				Interval: cfg.SchedulerConfig.Interval,
			}, sq, svc.clock, svc.sink, l)
			go scheduler.Run(ctx)
		}

		distributors := make([]*distributor.MultiMerkleDistributor, 0)
		if svc.distributor != nil {
			distributors = append(distributors, svc.distributor)
		}

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort: cfg.RpcConfig.HttpPort,
		}, svc.board, distributors, sq, svc.ledger, svc.sink, l)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		promChan := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := pServer.Start(promChan); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Infow("Started questboard", zap.Int("httpPort", cfg.RpcConfig.HttpPort))

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			if cfg.PrometheusConfig.Enabled {
				promChan <- true
			}
			sq.Close()
			cancel()
		}, time.Second*5, l)
	},
}

// logBoardEvents writes every committed board event to the log until ctx is done.
func logBoardEvents(ctx context.Context, svc *services, l *zap.Logger) {
	consumer := &eventBusTypes.Consumer{
		Id:      eventBusTypes.NewConsumerId(),
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 100),
	}
	svc.eventBus.Subscribe(consumer)

	go func() {
		defer svc.eventBus.Unsubscribe(consumer)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-consumer.Channel:
				l.Sugar().Infow("Board event",
					zap.String("id", event.Id),
					zap.String("name", event.Name.String()),
					zap.Any("data", event.Data),
				)
			}
		}
	}()
}
