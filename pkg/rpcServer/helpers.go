package rpcServer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/Layr-Labs/questboard/pkg/settlementQueue"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type callerKey struct{}

var (
	errMissingCaller = errors.New("missing " + CallerHeader + " header")
	errBadRequest    = errors.New("bad request")
)

// requireCaller parses the caller header into the request context.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CallerHeader)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, &ErrorResponse{Error: errMissingCaller.Error()})
			return
		}
		caller, err := utils.ParseAddress(raw)
		if err != nil || utils.IsZeroAddress(caller) {
			writeJSON(w, http.StatusUnauthorized, &ErrorResponse{Error: fmt.Sprintf("invalid caller '%s'", raw)})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) common.Address {
	caller, _ := r.Context().Value(callerKey{}).(common.Address)
	return caller
}

func (rpc *RpcServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if rpc.metrics == nil {
			return
		}
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "pattern", Value: pattern},
			{Name: "status_code", Value: strconv.Itoa(ww.Status())},
		}
		_ = rpc.metrics.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rpc.metrics.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)
	})
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusForKind maps a board error kind to an HTTP status.
func statusForKind(kind questBoard.ErrorKind) int {
	switch kind {
	case questBoard.ErrorKind_Authorization:
		return http.StatusForbidden
	case questBoard.ErrorKind_InvalidReference:
		return http.StatusNotFound
	case questBoard.ErrorKind_InvalidAmount:
		return http.StatusBadRequest
	case questBoard.ErrorKind_StateConflict:
		return http.StatusConflict
	case questBoard.ErrorKind_SystemHalted:
		return http.StatusLocked
	case questBoard.ErrorKind_ConfigurationMissing:
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}

// statusForError covers the errors of the board, the distributor and the ledger.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, distributor.ErrUnknownQuest), errors.Is(err, distributor.ErrUnknownPeriod):
		return http.StatusNotFound
	case errors.Is(err, distributor.ErrInvalidProof), errors.Is(err, distributor.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, distributor.ErrAlreadyClaimed),
		errors.Is(err, distributor.ErrRootNotSet),
		errors.Is(err, distributor.ErrAmountExceedsFunds),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, settlementQueue.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return statusForKind(questBoard.KindOf(err))
}

func (rpc *RpcServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	resp := &ErrorResponse{Error: err.Error()}
	if kind := questBoard.KindOf(err); kind != questBoard.ErrorKind_Internal {
		resp.Kind = string(kind)
	}
	if status >= http.StatusInternalServerError {
		rpc.Logger.Sugar().Errorw("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func uint64Param(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s '%s'", errBadRequest, name, chi.URLParam(r, name))
	}
	return v, nil
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	a, err := utils.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return a, nil
}

func parseAddress(field string, s string) (common.Address, error) {
	a, err := utils.ParseAddress(s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return a, nil
}

func parseAddresses(field string, list []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(list))
	for _, s := range list {
		a, err := parseAddress(field, s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// parseAmount accepts integers and scientific notation. An empty string is zero.
func parseAmount(field string, s string) (*big.Int, error) {
	if s == "" {
		return numbers.Zero(), nil
	}
	v, err := numbers.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return v, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressStrings(list []common.Address) []string {
	return utils.Map(list, func(a common.Address, i uint64) string {
		return a.Hex()
	})
}
