// Package schema defines the event record layouts HoneybeePF probes
// exchange with their in-kernel counterparts, byte-for-byte, plus the
// userspace decoding helpers used to turn a ring buffer record into a
// typed Go value.
package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
)

// EventMetadata is the common header every payload embeds at offset 0
// (spec §3 invariant).
type EventMetadata struct {
	TimestampNs uint64
	PID         uint32
	TID         uint32
	Comm        [constants.CommSize]byte
}

// CommString decodes the NUL-terminated comm field, truncating silently.
func (m EventMetadata) CommString() string { return FieldString(m.Comm[:]) }

// Time converts the monotonic kernel timestamp to a wall-clock time given
// the process's resolved boot time.
func (m EventMetadata) Time(bootTime time.Time) time.Time {
	return bootTime.Add(time.Duration(m.TimestampNs) * time.Nanosecond)
}

// BlockIoEvent is the raw block I/O completion record (spec §3).
type BlockIoEvent struct {
	Meta       EventMetadata
	DevicePath [constants.DevicePathSize]byte
	Bytes      uint64
	LatencyNs  uint64
	OpKind     uint8
	_          [7]byte // padding to keep 8-byte alignment
}

// DevicePathString decodes the device path, truncating silently.
func (e BlockIoEvent) DevicePathString() string { return FieldString(e.DevicePath[:]) }

// OpKind enumerates the block I/O request kinds the block_rq_issue
// tracepoint's rwbs field distinguishes (spec §3).
type OpKind uint8

const (
	OpKindRead OpKind = iota
	OpKindWrite
	OpKindFlush
	OpKindDiscard
)

// String returns the canonical label value for a block I/O op kind;
// unrecognized codes report "unknown" rather than panicking.
func (o OpKind) String() string {
	switch o {
	case OpKindRead:
		return "read"
	case OpKindWrite:
		return "write"
	case OpKindFlush:
		return "flush"
	case OpKindDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// NetworkLatencyEvent is the raw TCP connect-to-close latency record (spec
// §3). SAddr/DAddr are IPv4-mapped IPv6 addresses (the low 4 bytes carry the
// address, preceded by the ::ffff: prefix) so the wire layout can carry IPv6
// peers without a schema change later.
type NetworkLatencyEvent struct {
	Meta      EventMetadata
	SAddr     [16]byte
	DAddr     [16]byte
	SPort     uint16
	DPort     uint16
	_         [4]byte // padding: the C struct aligns bytes to 8
	Bytes     uint64
	LatencyNs uint64
	Direction uint8
	_         [7]byte // padding to keep 8-byte alignment
}

// SAddrIP returns the source address as a net.IP.
func (e NetworkLatencyEvent) SAddrIP() net.IP { return net.IP(e.SAddr[:]) }

// DAddrIP returns the destination address as a net.IP.
func (e NetworkLatencyEvent) DAddrIP() net.IP { return net.IP(e.DAddr[:]) }

// Direction distinguishes connection-initiating from connection-accepting
// traffic (spec §3/§6).
type Direction uint8

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

// String returns the canonical label value for a traffic direction;
// unrecognized codes report "unknown" rather than panicking.
func (d Direction) String() string {
	switch d {
	case DirectionOutbound:
		return "outbound"
	case DirectionInbound:
		return "inbound"
	default:
		return "unknown"
	}
}

// GpuOpenEvent is the raw GPU device-open record (spec §3).
type GpuOpenEvent struct {
	Meta       EventMetadata
	DevicePath [constants.DevicePathSize]byte
	OpenFlags  uint32
	_          [4]byte // padding to keep 8-byte alignment
	RetVal     int64
}

// DevicePathString decodes the device path, truncating silently.
func (e GpuOpenEvent) DevicePathString() string { return FieldString(e.DevicePath[:]) }

// NcclCallEvent is the raw NCCL collective-call record (spec §3).
type NcclCallEvent struct {
	Meta        EventMetadata
	OpKind      uint32
	Count       uint32
	DataType    uint32
	ReductionOp uint32
	PeerOrRoot  int64
	DurationNs  uint64
	RetCode     int64
}

// NcclOpKind enumerates the fixed NCCL collective/point-to-point call set
// (spec §3).
type NcclOpKind uint32

const (
	NcclOpAllReduce NcclOpKind = iota
	NcclOpBroadcast
	NcclOpAllGather
	NcclOpReduceScatter
	NcclOpReduce
	NcclOpAllToAll
	NcclOpSend
	NcclOpRecv
	NcclOpGroupStart
	NcclOpGroupEnd
)

// String returns the canonical label value for an NCCL op kind; unrecognized
// codes report "unknown" rather than panicking.
func (o NcclOpKind) String() string {
	switch o {
	case NcclOpAllReduce:
		return "AllReduce"
	case NcclOpBroadcast:
		return "Broadcast"
	case NcclOpAllGather:
		return "AllGather"
	case NcclOpReduceScatter:
		return "ReduceScatter"
	case NcclOpReduce:
		return "Reduce"
	case NcclOpAllToAll:
		return "AllToAll"
	case NcclOpSend:
		return "Send"
	case NcclOpRecv:
		return "Recv"
	case NcclOpGroupStart:
		return "GroupStart"
	case NcclOpGroupEnd:
		return "GroupEnd"
	default:
		return "unknown"
	}
}

// ReductionOp enumerates the fixed NCCL reduction-op set (spec §9, decided).
// Only meaningful for op kinds that carry a reduction (AllReduce,
// ReduceScatter, Reduce); zero-valued otherwise.
type ReductionOp uint32

const (
	ReductionSum ReductionOp = iota
	ReductionProd
	ReductionMax
	ReductionMin
	ReductionAvg
)

// String returns the canonical label value for a reduction op; unrecognized
// codes report "unknown" rather than panicking.
func (r ReductionOp) String() string {
	switch r {
	case ReductionSum:
		return "sum"
	case ReductionProd:
		return "prod"
	case ReductionMax:
		return "max"
	case ReductionMin:
		return "min"
	case ReductionAvg:
		return "avg"
	default:
		return "unknown"
	}
}

// NcclDataType enumerates the fixed NCCL element datatype set (spec §3: an
// enumerated width 1…8 bytes).
type NcclDataType uint32

const (
	NcclInt8 NcclDataType = iota
	NcclUint8
	NcclInt32
	NcclUint32
	NcclInt64
	NcclUint64
	NcclFloat16
	NcclFloat32
	NcclFloat64
	NcclBfloat16
)

// String returns the canonical label value for an NCCL datatype;
// unrecognized codes report "unknown" rather than panicking.
func (d NcclDataType) String() string {
	switch d {
	case NcclInt8:
		return "int8"
	case NcclUint8:
		return "uint8"
	case NcclInt32:
		return "int32"
	case NcclUint32:
		return "uint32"
	case NcclInt64:
		return "int64"
	case NcclUint64:
		return "uint64"
	case NcclFloat16:
		return "float16"
	case NcclFloat32:
		return "float32"
	case NcclFloat64:
		return "float64"
	case NcclBfloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// LlmCallEvent is the raw LLM request/response call record (spec §3).
type LlmCallEvent struct {
	Meta             EventMetadata
	Host             [constants.HostSize]byte
	Path             [constants.PathSize]byte
	ModelName        [constants.ModelNameSize]byte
	PromptTokens     uint32
	CompletionTokens uint32
	DurationNs       uint64
}

// HostString decodes the host field, truncating silently.
func (e LlmCallEvent) HostString() string { return FieldString(e.Host[:]) }

// PathString decodes the path field, truncating silently.
func (e LlmCallEvent) PathString() string { return FieldString(e.Path[:]) }

// ModelNameString decodes the model name field, truncating silently.
func (e LlmCallEvent) ModelNameString() string { return FieldString(e.ModelName[:]) }

// PendingCall models a single in-flight entry-hook invocation, keyed by tid
// in the in-kernel map this mirrors (spec §3/§4.3).
type PendingCall struct {
	TID        uint32
	EntryTSNs  uint64
	ProbeName  string
}

// OrphanReturn marks a return-side hook firing with no matching entry
// (spec §4.3 invariant: counted, never silently dropped).
type OrphanReturn struct {
	TID       uint32
	ProbeName string
	ReturnTS  uint64
}

// FieldString extracts a NUL-terminated string from a fixed-size byte
// field, truncating silently per the decode invariant (spec §3).
func FieldString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

// Decode reads a fixed-layout value T from a raw ring buffer sample.
func Decode[T any](raw []byte) (T, error) {
	var v T
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("decoding record: %w", err)
	}
	return v, nil
}
