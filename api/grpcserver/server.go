package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sauravnith/swirly/domain/instrument"
	"github.com/sauravnith/swirly/domain/orderbook"
	"github.com/sauravnith/swirly/service"
)

// Server adapts the Exchange to gRPC. The exchange is single-writer, so
// every call holds the lock.
type Server struct {
	mu  sync.Mutex
	x   *service.Exchange
	log *zap.Logger
}

func NewServer(x *service.Exchange, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{x: x, log: log}
}

// Do runs fn under the exchange lock. Background jobs use it to share the
// exchange with request handlers.
func (s *Server) Do(fn func(*service.Exchange) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.x)
}

// -------------------- Commands --------------------

func (s *Server) Place(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.placeRequest(in)
	if err != nil {
		return nil, err
	}

	// The order stays live in the book once placed, so it is copied before
	// the lock is released.
	var (
		order   orderbook.Order
		matches int
		taken   int64
	)
	err = s.Do(func(x *service.Exchange) error {
		o, trans, err := x.Place(req)
		if err != nil {
			return err
		}
		order, matches, taken = o.Snapshot(), trans.Count(), trans.Taken
		return nil
	})
	if err != nil {
		return nil, s.fail("Place", err)
	}

	s.log.Debug("order_placed",
		zap.Uint64("order_id", order.ID),
		zap.Int("matches", matches),
		zap.Int64("taken", taken),
	)
	return response(map[string]any{
		"order":   order,
		"matches": matches,
		"taken":   taken,
	})
}

func (s *Server) Revise(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	trader, err := intField(in, "trader", true)
	if err != nil {
		return nil, err
	}
	lots, err := intField(in, "lots", true)
	if err != nil {
		return nil, err
	}
	id, ref, err := orderKey(in)
	if err != nil {
		return nil, err
	}

	var order orderbook.Order
	err = s.Do(func(x *service.Exchange) error {
		var o *orderbook.Order
		var err error
		if ref != "" {
			o, err = x.ReviseByRef(uint64(trader), ref, lots)
		} else {
			o, err = x.ReviseByID(uint64(trader), id, lots)
		}
		if err != nil {
			return err
		}
		order = o.Snapshot()
		return nil
	})
	if err != nil {
		return nil, s.fail("Revise", err)
	}
	return response(map[string]any{"order": order})
}

func (s *Server) Cancel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	trader, err := intField(in, "trader", true)
	if err != nil {
		return nil, err
	}
	id, ref, err := orderKey(in)
	if err != nil {
		return nil, err
	}

	var order orderbook.Order
	err = s.Do(func(x *service.Exchange) error {
		var o *orderbook.Order
		var err error
		if ref != "" {
			o, err = x.CancelByRef(uint64(trader), ref)
		} else {
			o, err = x.CancelByID(uint64(trader), id)
		}
		if err != nil {
			return err
		}
		order = o.Snapshot()
		return nil
	})
	if err != nil {
		return nil, s.fail("Cancel", err)
	}
	return response(map[string]any{"order": order})
}

func (s *Server) ArchiveOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	trader, err := intField(in, "trader", true)
	if err != nil {
		return nil, err
	}
	id, err := intField(in, "id", true)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.x.ArchiveOrder(uint64(trader), uint64(id))
	s.mu.Unlock()
	if err != nil {
		return nil, s.fail("ArchiveOrder", err)
	}
	return response(map[string]any{"id": id})
}

// -------------------- Queries --------------------

func (s *Server) View(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	cid, err := intField(in, "contract", true)
	if err != nil {
		return nil, err
	}
	day, err := settlDay(in)
	if err != nil {
		return nil, err
	}
	depth, err := intField(in, "depth", false)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	v, err := s.x.View(uint32(cid), day, int(depth))
	s.mu.Unlock()
	if err != nil {
		return nil, s.fail("View", err)
	}
	return response(map[string]any{"view": v})
}

// -------------------- Converters --------------------

func (s *Server) placeRequest(in *structpb.Struct) (service.PlaceRequest, error) {
	var req service.PlaceRequest
	trader, err := intField(in, "trader", true)
	if err != nil {
		return req, err
	}
	acc, err := intField(in, "account", false)
	if err != nil {
		return req, err
	}
	if acc == 0 {
		acc = trader
	}
	cid, err := intField(in, "contract", true)
	if err != nil {
		return req, err
	}
	day, err := settlDay(in)
	if err != nil {
		return req, err
	}
	action, err := toAction(stringField(in, "action"))
	if err != nil {
		return req, err
	}
	lots, err := intField(in, "lots", true)
	if err != nil {
		return req, err
	}
	minLots, err := intField(in, "minLots", false)
	if err != nil {
		return req, err
	}
	ticks, err := s.ticks(in, uint32(cid))
	if err != nil {
		return req, err
	}

	return service.PlaceRequest{
		Trader:   uint64(trader),
		Account:  uint64(acc),
		Contract: uint32(cid),
		SettlDay: day,
		Ref:      stringField(in, "ref"),
		Action:   action,
		Ticks:    ticks,
		Lots:     lots,
		MinLots:  minLots,
	}, nil
}

// ticks accepts either integer "ticks" or a decimal "price" string.
func (s *Server) ticks(in *structpb.Struct, cid uint32) (int64, error) {
	price := stringField(in, "price")
	if price == "" {
		return intField(in, "ticks", true)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid price %q", price)
	}

	s.mu.Lock()
	contr := s.x.Contract(cid)
	s.mu.Unlock()
	if contr == nil {
		return 0, status.Errorf(codes.InvalidArgument, "no such contract '%d'", cid)
	}
	t, err := contr.Ticks(p)
	if err != nil {
		return 0, status.Error(codes.InvalidArgument, err.Error())
	}
	return t, nil
}

func toAction(s string) (orderbook.Action, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return orderbook.Buy, nil
	case "SELL":
		return orderbook.Sell, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "invalid action %q", s)
	}
}

// settlDay reads "settlDate" as yyyymmdd.
func settlDay(in *structpb.Struct) (int32, error) {
	ymd, err := intField(in, "settlDate", true)
	if err != nil {
		return 0, err
	}
	y, m, d := int(ymd/10000), time.Month(ymd/100%100), int(ymd%100)
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return 0, status.Errorf(codes.InvalidArgument, "invalid settlDate %d", ymd)
	}
	return instrument.JD(y, m, d), nil
}

func orderKey(in *structpb.Struct) (uint64, string, error) {
	if ref := stringField(in, "ref"); ref != "" {
		return 0, ref, nil
	}
	id, err := intField(in, "id", true)
	return uint64(id), "", err
}

func intField(in *structpb.Struct, key string, required bool) (int64, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		if required {
			return 0, status.Errorf(codes.InvalidArgument, "missing %s", key)
		}
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", key)
	}
	return int64(n.NumberValue), nil
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

// response flattens v through JSON into a Struct.
func response(v map[string]any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// fail maps exchange errors onto gRPC codes.
func (s *Server) fail(op string, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrJournal), errors.Is(err, service.ErrHalted):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.log.Error("request_failed", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, fmt.Sprintf("%s: %v", op, err))
	}
}
