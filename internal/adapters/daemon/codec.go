package daemon

import (
	"fmt"

	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protowire"
)

// wireMessage is a daemon message that reads and writes the protobuf wire
// format itself. Field numbers are listed on each message type.
type wireMessage interface {
	appendWire(b []byte) []byte
	// consumeField decodes the value of one field from b and returns the
	// number of bytes read, or a negative protowire error code.
	consumeField(num protowire.Number, typ protowire.Type, b []byte) int
}

// protoCodec carries the daemon messages as protobuf. The query payload is
// already a framed byte stream, so the messages stay small enough to encode
// field by field.
type protoCodec struct{}

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, zerr.With(zerr.New("unsupported daemon message"), "type", fmt.Sprintf("%T", v))
	}
	return m.appendWire(nil), nil
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return zerr.With(zerr.New("unsupported daemon message"), "type", fmt.Sprintf("%T", v))
	}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return zerr.Wrap(protowire.ParseError(n), "failed to decode daemon message")
		}
		data = data[n:]

		n = m.consumeField(num, typ, data)
		if n < 0 {
			return zerr.With(zerr.Wrap(protowire.ParseError(n), "failed to decode daemon message"), "field", int(num))
		}
		data = data[n:]
	}
	return nil
}

func (protoCodec) Name() string {
	return "proto"
}

// ServerOptions returns the options every daemon gRPC server is built with.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(protoCodec{})}
}

// CallOptions returns the default call options of every daemon connection.
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.ForceCodec(protoCodec{})}
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// consumeVarint reads a varint field into dst. Fields of another wire type
// are skipped.
func consumeVarint(num protowire.Number, typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeInt64(num protowire.Number, typ protowire.Type, b []byte, dst *int64) int {
	var v uint64
	n := consumeVarint(num, typ, b, &v)
	if n >= 0 && typ == protowire.VarintType {
		*dst = int64(v) //nolint:gosec // int64 fields travel as two's complement varints
	}
	return n
}

func consumeBool(num protowire.Number, typ protowire.Type, b []byte, dst *bool) int {
	var v uint64
	n := consumeVarint(num, typ, b, &v)
	if n >= 0 && typ == protowire.VarintType {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

// consumeBytes reads a length-delimited field. Fields of another wire type
// are skipped.
func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst func([]byte)) int {
	if typ != protowire.BytesType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		dst(v)
	}
	return n
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) int {
	return protowire.ConsumeFieldValue(num, typ, b)
}

func (*PingRequest) appendWire(b []byte) []byte { return b }

func (*PingRequest) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	return skipField(num, typ, b)
}

func (m *PingResponse) appendWire(b []byte) []byte {
	return appendVarintField(b, 1, uint64(m.IdleRemainingSeconds)) //nolint:gosec // two's complement
}

func (m *PingResponse) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeInt64(num, typ, b, &m.IdleRemainingSeconds)
	}
	return skipField(num, typ, b)
}

func (m *QueryRequest) appendWire(b []byte) []byte {
	if m.Query == "" {
		return b
	}
	return appendStringField(b, 1, m.Query)
}

func (m *QueryRequest) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeBytes(num, typ, b, func(v []byte) { m.Query = string(v) })
	}
	return skipField(num, typ, b)
}

func (m *QueryResponse) appendWire(b []byte) []byte {
	b = appendBytesField(b, 1, m.Payload)
	for _, d := range m.Diagnostics {
		b = appendStringField(b, 2, d)
	}
	return b
}

func (m *QueryResponse) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	switch num {
	case 1:
		return consumeBytes(num, typ, b, func(v []byte) { m.Payload = append(m.Payload[:0], v...) })
	case 2:
		return consumeBytes(num, typ, b, func(v []byte) { m.Diagnostics = append(m.Diagnostics, string(v)) })
	default:
		return skipField(num, typ, b)
	}
}

func (*InvalidateRequest) appendWire(b []byte) []byte { return b }

func (*InvalidateRequest) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	return skipField(num, typ, b)
}

func (*InvalidateResponse) appendWire(b []byte) []byte { return b }

func (*InvalidateResponse) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	return skipField(num, typ, b)
}

func (*StatusRequest) appendWire(b []byte) []byte { return b }

func (*StatusRequest) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	return skipField(num, typ, b)
}

//nolint:gosec // int64 fields travel as two's complement varints
func (m *StatusResponse) appendWire(b []byte) []byte {
	b = appendVarintField(b, 1, protowire.EncodeBool(m.Running))
	b = appendVarintField(b, 2, uint64(m.Pid))
	b = appendVarintField(b, 3, uint64(m.UptimeSeconds))
	b = appendVarintField(b, 4, uint64(m.LastActivityUnix))
	b = appendVarintField(b, 5, uint64(m.IdleRemainingSeconds))
	return appendVarintField(b, 6, uint64(m.QueriesServed))
}

func (m *StatusResponse) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	switch num {
	case 1:
		return consumeBool(num, typ, b, &m.Running)
	case 2:
		return consumeInt64(num, typ, b, &m.Pid)
	case 3:
		return consumeInt64(num, typ, b, &m.UptimeSeconds)
	case 4:
		return consumeInt64(num, typ, b, &m.LastActivityUnix)
	case 5:
		return consumeInt64(num, typ, b, &m.IdleRemainingSeconds)
	case 6:
		return consumeInt64(num, typ, b, &m.QueriesServed)
	default:
		return skipField(num, typ, b)
	}
}

func (*ShutdownRequest) appendWire(b []byte) []byte { return b }

func (*ShutdownRequest) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	return skipField(num, typ, b)
}

func (m *ShutdownResponse) appendWire(b []byte) []byte {
	return appendVarintField(b, 1, protowire.EncodeBool(m.Success))
}

func (m *ShutdownResponse) consumeField(num protowire.Number, typ protowire.Type, b []byte) int {
	if num == 1 {
		return consumeBool(num, typ, b, &m.Success)
	}
	return skipField(num, typ, b)
}
