// Package grpctap records outgoing gRPC calls into a capture engine
// through client interceptors. Unary calls produce one record per call;
// streams produce one record per stream, settled when the stream closes.
//
// Message bodies render through protojson when the payload is a proto
// message. A successful call records status 200 for filter parity with
// HTTP traffic; the canonical gRPC code lives in the "grpc.code"
// annotation.
package grpctap

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/gettapd/tapd/internal/id"
	"github.com/gettapd/tapd/pkg/capture"
	"github.com/gettapd/tapd/pkg/normalize"
	"github.com/gettapd/tapd/pkg/tracelog"
)

// UnaryClientInterceptor records every unary call made through the
// connection. Wire it with grpc.WithUnaryInterceptor at dial time.
func UnaryClientInterceptor(cap *capture.Capture) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if !cap.Enabled() {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		start := time.Now()
		rec := newRecord(method, cc.Target())
		rec.RequestBody = messageBody(req)

		err := invoker(ctx, method, req, reply, cc, opts...)
		rec.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			settleError(rec, err)
		} else {
			rec.ResponseStatus = 200
			rec.ResponseBody = messageBody(reply)
			annotate(rec, codes.OK)
		}
		cap.Record(rec)
		return err
	}
}

// StreamClientInterceptor records every stream opened through the
// connection. The record settles when RecvMsg returns a terminal error
// (io.EOF for normal termination, a status error otherwise).
func StreamClientInterceptor(cap *capture.Capture) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		if !cap.Enabled() {
			return streamer(ctx, desc, cc, method, opts...)
		}

		start := time.Now()
		rec := newRecord(method, cc.Target())

		stream, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			rec.DurationMs = time.Since(start).Milliseconds()
			settleError(rec, err)
			cap.Record(rec)
			return nil, err
		}
		return &tappedStream{ClientStream: stream, cap: cap, rec: rec, start: start}, nil
	}
}

// tappedStream wraps a client stream, counting messages in both directions
// and settling the record exactly once at stream end.
type tappedStream struct {
	grpc.ClientStream
	cap   *capture.Capture
	rec   *tracelog.Record
	start time.Time

	mu       sync.Mutex
	sent     int
	received int
	once     sync.Once
}

func (s *tappedStream) SendMsg(m any) error {
	err := s.ClientStream.SendMsg(m)
	if err == nil {
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()
	}
	return err
}

func (s *tappedStream) RecvMsg(m any) error {
	err := s.ClientStream.RecvMsg(m)
	if err == nil {
		s.mu.Lock()
		s.received++
		s.mu.Unlock()
		return nil
	}
	s.settle(err)
	return err
}

func (s *tappedStream) settle(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		sent, received := s.sent, s.received
		s.mu.Unlock()

		s.rec.DurationMs = time.Since(s.start).Milliseconds()
		s.rec.RequestBody = normalize.Stream()
		s.rec.ResponseBody = normalize.Stream()
		s.rec.RequestBodySize = sent
		s.rec.ResponseBodySize = received

		// io.EOF is normal stream termination, not a failure.
		if err == nil || errors.Is(err, io.EOF) {
			s.rec.ResponseStatus = 200
			annotate(s.rec, codes.OK)
		} else {
			settleError(s.rec, err)
		}
		s.cap.Record(s.rec)
	})
}

func newRecord(method, target string) *tracelog.Record {
	return &tracelog.Record{
		ID:         id.Request(),
		Transport:  tracelog.TransportGRPC,
		Method:     "POST",
		URL:        "grpc://" + target + method,
		Timestamp:  time.Now(),
		DurationMs: tracelog.DurationUnset,
		Annotations: map[string]string{
			"grpc.method":  methodName(method),
			"grpc.service": serviceName(method),
		},
	}
}

func settleError(rec *tracelog.Record, err error) {
	rec.Error = err.Error()
	annotate(rec, status.Code(err))
}

func annotate(rec *tracelog.Record, code codes.Code) {
	if rec.Annotations == nil {
		rec.Annotations = make(map[string]string)
	}
	rec.Annotations["grpc.code"] = code.String()
}

// messageBody renders a proto message as canonical JSON data; non-proto
// payloads fall back to an unparseable descriptor.
func messageBody(m any) any {
	msg, ok := m.(proto.Message)
	if !ok {
		return normalize.Unparseable()
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return normalize.Unparseable()
	}
	if len(raw) == 0 {
		return nil
	}
	return normalize.Body(raw, "application/json")
}

// serviceName extracts the service from a full method "/pkg.Service/Method".
func serviceName(fullMethod string) string {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

func methodName(fullMethod string) string {
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}
