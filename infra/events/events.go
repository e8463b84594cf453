// Package events encodes execution and market-data events as protobuf.
//
// The envelope is a google.protobuf.Struct so consumers need no generated
// code: {"id": uuid, "kind": "exec"|"view", "time": {seconds, nanos},
// "body": {...}}. Numeric body fields are doubles; ids stay below 2^53.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/orderbook"
)

type Kind string

const (
	KindExec Kind = "exec"
	KindView Kind = "view"
)

// execSpace names exec event ids, which are derived from the exec id so a
// resend after restart carries the same event id.
var execSpace = uuid.MustParse("5d0a4c52-6b1e-4f43-9a43-3f3c8d1e2a10")

// Event is a decoded envelope.
type Event struct {
	ID   uuid.UUID
	Kind Kind
	Time time.Time
	Body map[string]any
}

type Encoder struct {
	now func() time.Time
}

func NewEncoder() *Encoder {
	return &Encoder{now: time.Now}
}

// Exec encodes an execution event.
func (e *Encoder) Exec(x *account.Exec) ([]byte, error) {
	id := uuid.NewSHA1(execSpace, []byte(strconv.FormatUint(x.ID, 10)))
	return e.encode(id, KindExec, x)
}

// View encodes a book view event.
func (e *Encoder) View(v *orderbook.View) ([]byte, error) {
	return e.encode(uuid.New(), KindView, v)
}

func (e *Encoder) encode(id uuid.UUID, kind Kind, body any) ([]byte, error) {
	fields, err := toMap(body)
	if err != nil {
		return nil, err
	}
	ts := timestamppb.New(e.now())
	env, err := structpb.NewStruct(map[string]any{
		"id":   id.String(),
		"kind": string(kind),
		"time": map[string]any{
			"seconds": float64(ts.GetSeconds()),
			"nanos":   float64(ts.GetNanos()),
		},
		"body": fields,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s event: %w", kind, err)
	}
	return proto.Marshal(env)
}

// toMap flattens a value through its JSON form so that structpb can hold
// it.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var ErrMalformed = errors.New("events: malformed envelope")

// Decode parses an envelope produced by Encoder.
func Decode(b []byte) (*Event, error) {
	var env structpb.Struct
	if err := proto.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	f := env.GetFields()

	id, err := uuid.Parse(f["id"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrMalformed, err)
	}
	tf := f["time"].GetStructValue().GetFields()
	if tf == nil {
		return nil, fmt.Errorf("%w: missing time", ErrMalformed)
	}
	ts := &timestamppb.Timestamp{
		Seconds: int64(tf["seconds"].GetNumberValue()),
		Nanos:   int32(tf["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("%w: time: %v", ErrMalformed, err)
	}
	return &Event{
		ID:   id,
		Kind: Kind(f["kind"].GetStringValue()),
		Time: ts.AsTime(),
		Body: f["body"].GetStructValue().AsMap(),
	}, nil
}
