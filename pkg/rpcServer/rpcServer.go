// Package rpcServer exposes the quest board over a JSON HTTP API.
//
// Mutating requests identify the acting account with the X-Questboard-Caller header.
// The server is meant to run inside a trusted operator network.
package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/Layr-Labs/questboard/pkg/settlementQueue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const CallerHeader = "X-Questboard-Caller"

type RpcServerConfig struct {
	HttpPort int
	// ServeMetrics mounts the prometheus handler at /metrics
	ServeMetrics bool
}

type RpcServer struct {
	config *RpcServerConfig

	board           *questBoard.Board
	distributors    map[common.Address]*distributor.MultiMerkleDistributor
	settlementQueue *settlementQueue.SettlementQueue
	ledger          *ledger.Ledger

	metrics metricsTypes.IMetricsClient
	Logger  *zap.Logger

	router *chi.Mux
	server *http.Server
}

// NewRpcServer builds the router. sq and ms may be nil; without a queue the
// close-pending endpoint is not available.
func NewRpcServer(
	cfg *RpcServerConfig,
	board *questBoard.Board,
	distributors []*distributor.MultiMerkleDistributor,
	sq *settlementQueue.SettlementQueue,
	tokenLedger *ledger.Ledger,
	ms metricsTypes.IMetricsClient,
	l *zap.Logger,
) *RpcServer {
	rpc := &RpcServer{
		config:          cfg,
		board:           board,
		distributors:    make(map[common.Address]*distributor.MultiMerkleDistributor),
		settlementQueue: sq,
		ledger:          tokenLedger,
		metrics:         ms,
		Logger:          l,
		router:          chi.NewRouter(),
	}
	for _, d := range distributors {
		rpc.distributors[d.Address()] = d
	}
	rpc.setupRoutes()

	rpc.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HttpPort),
		Handler:           rpc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return rpc
}

// Handler returns the root handler with CORS applied.
func (rpc *RpcServer) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", CallerHeader},
	}).Handler(rpc.router)
}

func (rpc *RpcServer) setupRoutes() {
	r := rpc.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rpc.metricsMiddleware)

	if rpc.config.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/board", rpc.GetBoard)
		r.Get("/board/tokens", rpc.ListWhitelistedTokens)
		r.Get("/board/managers", rpc.ListManagers)

		r.Get("/periods/current", rpc.GetCurrentPeriod)
		r.Get("/periods/pending", rpc.ListPendingPeriods)
		r.Get("/periods/{periodId}/quests", rpc.ListQuestsForPeriod)

		r.Get("/quests/{questId}", rpc.GetQuest)
		r.Get("/quests/{questId}/periods", rpc.ListQuestPeriods)
		r.Get("/quests/{questId}/periods/{periodId}", rpc.GetQuestPeriod)
		r.Get("/quests/{questId}/blacklist", rpc.GetQuestBlacklist)
		r.Get("/quests/{questId}/bias", rpc.GetCurrentReducedBias)

		r.Get("/balances/{token}/{account}", rpc.GetBalance)

		r.Route("/distributors/{distributor}", func(r chi.Router) {
			r.Get("/quests/{questId}/periods/{periodId}", rpc.GetDistributorPeriod)
			r.Get("/quests/{questId}/periods/{periodId}/claims/{index}", rpc.IsClaimed)
			r.Post("/claims", rpc.Claim)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireCaller)

			r.Post("/quests", rpc.CreateQuest)
			r.Post("/quests/{questId}/duration", rpc.IncreaseQuestDuration)
			r.Post("/quests/{questId}/reward", rpc.IncreaseQuestReward)
			r.Post("/quests/{questId}/objective", rpc.IncreaseQuestObjective)
			r.Post("/quests/{questId}/blacklist", rpc.AddToBlacklist)
			r.Delete("/quests/{questId}/blacklist/{voter}", rpc.RemoveFromBlacklist)
			r.Post("/quests/{questId}/withdraw", rpc.WithdrawUnusedRewards)
			r.Post("/quests/{questId}/emergency-withdraw", rpc.EmergencyWithdraw)

			r.Post("/periods/{periodId}/close", rpc.ClosePeriod)
			r.Post("/periods/{periodId}/close-quests", rpc.ClosePartOfPeriod)
			r.Post("/periods/{periodId}/merkle-roots", rpc.AddMerkleRoots)
			r.Post("/periods/{periodId}/quests/{questId}/bias", rpc.FixPeriodBias)
			r.Post("/settlement/pending", rpc.ClosePendingPeriods)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/managers", rpc.ApproveManager)
				r.Delete("/managers/{manager}", rpc.RemoveManager)
				r.Post("/owner", rpc.TransferOwnership)
				r.Post("/tokens", rpc.WhitelistTokens)
				r.Put("/tokens/{token}", rpc.UpdateRewardToken)
				r.Delete("/tokens/{token}", rpc.RemoveWhitelistedToken)
				r.Put("/platform-fee", rpc.SetPlatformFee)
				r.Put("/min-objective", rpc.SetMinObjective)
				r.Put("/chest", rpc.UpdateChest)
				r.Post("/distributor", rpc.InitiateDistributor)
				r.Put("/distributor", rpc.UpdateDistributor)
				r.Post("/recover", rpc.RecoverERC20)
				r.Post("/kill", rpc.KillBoard)
				r.Post("/unkill", rpc.UnkillBoard)
			})
		})
	})
}

// Start serves in the background until a value is sent on stop.
func (rpc *RpcServer) Start(ctx context.Context, stop chan bool) error {
	go func() {
		rpc.Logger.Sugar().Infow("Starting http server", zap.Int("port", rpc.config.HttpPort))
		if err := rpc.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.Logger.Sugar().Errorw("Http server failed", zap.Error(err))
		}
	}()
	go func() {
		select {
		case <-stop:
		case <-ctx.Done():
		}
		rpc.Logger.Sugar().Infow("Stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rpc.server.Shutdown(shutdownCtx); err != nil {
			rpc.Logger.Sugar().Errorw("Failed to shutdown http server", zap.Error(err))
		}
	}()
	return nil
}
