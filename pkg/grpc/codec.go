package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// ProtoCodecName 與 gRPC 內建 proto codec 同名 (content-type application/grpc+proto)
const ProtoCodecName = "proto"

// ProtoCodec 以 protobuf 編解碼 gRPC 訊息，輸出固定排序，相同訊息得到相同位元組。
// 透過 grpc.ForceCodec / grpc.ForceServerCodec 使用，不覆蓋全域註冊的 codec。
type ProtoCodec struct{}

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("proto codec marshal: %T is not a proto.Message", v)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("proto codec marshal %T: %w", v, err)
	}
	return b, nil
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("proto codec unmarshal: %T is not a proto.Message", v)
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return fmt.Errorf("proto codec unmarshal %T: %w", v, err)
	}
	return nil
}

func (ProtoCodec) Name() string { return ProtoCodecName }

var _ encoding.Codec = ProtoCodec{}
