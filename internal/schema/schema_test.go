package schema

import "testing"

func TestFieldString(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"truncates at nul", []byte{'c', 'u', 'r', 'l', 0, 0, 0}, "curl"},
		{"full buffer, no nul", []byte{'a', 'b', 'c', 'd'}, "abcd"},
		{"empty", []byte{}, ""},
		{"nul at start", []byte{0, 'x'}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldString(tt.in); got != tt.want {
				t.Errorf("FieldString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReductionOpString(t *testing.T) {
	tests := []struct {
		op   ReductionOp
		want string
	}{
		{ReductionSum, "sum"},
		{ReductionProd, "prod"},
		{ReductionMax, "max"},
		{ReductionMin, "min"},
		{ReductionAvg, "avg"},
		{ReductionOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("ReductionOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOpKindString(t *testing.T) {
	tests := []struct {
		op   OpKind
		want string
	}{
		{OpKindRead, "read"},
		{OpKindWrite, "write"},
		{OpKindFlush, "flush"},
		{OpKindDiscard, "discard"},
		{OpKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("OpKind(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionOutbound, "outbound"},
		{DirectionInbound, "inbound"},
		{Direction(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestNcclOpKindString(t *testing.T) {
	tests := []struct {
		op   NcclOpKind
		want string
	}{
		{NcclOpAllReduce, "AllReduce"},
		{NcclOpBroadcast, "Broadcast"},
		{NcclOpAllGather, "AllGather"},
		{NcclOpReduceScatter, "ReduceScatter"},
		{NcclOpReduce, "Reduce"},
		{NcclOpAllToAll, "AllToAll"},
		{NcclOpSend, "Send"},
		{NcclOpRecv, "Recv"},
		{NcclOpGroupStart, "GroupStart"},
		{NcclOpGroupEnd, "GroupEnd"},
		{NcclOpKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("NcclOpKind(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestNcclDataTypeString(t *testing.T) {
	tests := []struct {
		dt   NcclDataType
		want string
	}{
		{NcclInt8, "int8"},
		{NcclFloat32, "float32"},
		{NcclBfloat16, "bfloat16"},
		{NcclDataType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.dt.String(); got != tt.want {
			t.Errorf("NcclDataType(%d).String() = %q, want %q", tt.dt, got, tt.want)
		}
	}
}

func TestNetworkLatencyEventAddrIPRoundTrip(t *testing.T) {
	ev := NetworkLatencyEvent{}
	ev.DAddr[10], ev.DAddr[11] = 0xff, 0xff
	ev.DAddr[12], ev.DAddr[13], ev.DAddr[14], ev.DAddr[15] = 10, 0, 0, 5
	if got := ev.DAddrIP().String(); got != "10.0.0.5" {
		t.Errorf("DAddrIP().String() = %q, want %q", got, "10.0.0.5")
	}
}

func TestDecodeBlockIoEvent(t *testing.T) {
	var raw [128]byte
	const devicePathOffset = 32 // sizeof(EventMetadata): 8 + 4 + 4 + 16
	copy(raw[devicePathOffset:], []byte("dm-0"))

	ev, err := Decode[BlockIoEvent](raw[:])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.DevicePathString() != "dm-0" {
		t.Errorf("DevicePathString() = %q, want %q", ev.DevicePathString(), "dm-0")
	}
}

func TestDecodeShortBufferErrors(t *testing.T) {
	_, err := Decode[BlockIoEvent]([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error decoding truncated buffer, got nil")
	}
}

func TestCommString(t *testing.T) {
	m := EventMetadata{Comm: [16]byte{'p', 'y', 't', 'h', 'o', 'n', '3', 0}}
	if got := m.CommString(); got != "python3" {
		t.Errorf("CommString() = %q, want %q", got, "python3")
	}
}
