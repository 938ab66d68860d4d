package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestPoolReusesConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	a, err := p.GetConnection("passthrough:///ledger:50051")
	require.NoError(t, err)
	b, err := p.GetConnection("passthrough:///ledger:50051")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := p.GetConnection("passthrough:///other:50051")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestPoolReplacesClosedConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	a, err := p.GetConnection("passthrough:///ledger:50051")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := p.GetConnection("passthrough:///ledger:50051")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestPoolOptions(t *testing.T) {
	noop := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	custom := keepalive.ClientParameters{Time: time.Minute, Timeout: 5 * time.Second}

	p := NewPool(WithInterceptor(noop), WithInterceptor(noop), WithKeepalive(custom))
	defer p.Close()
	assert.Len(t, p.interceptors, 2)
	assert.Equal(t, custom, p.keepalive)

	_, err := p.GetConnection("passthrough:///ledger:50051")
	require.NoError(t, err)

	defaults := NewPool(WithKeepalive(keepalive.ClientParameters{}))
	assert.Equal(t, 10*time.Second, defaults.keepalive.Time)
}

func TestProtoCodecRoundTrip(t *testing.T) {
	codec := ProtoCodec{}
	data, err := codec.Marshal(wrapperspb.String("treasury"))
	require.NoError(t, err)

	want, err := proto.Marshal(wrapperspb.String("treasury"))
	require.NoError(t, err)
	assert.Equal(t, want, data)

	out := &wrapperspb.StringValue{}
	require.NoError(t, codec.Unmarshal(data, out))
	assert.Equal(t, "treasury", out.GetValue())
	assert.Equal(t, "proto", codec.Name())

	_, err = codec.Marshal(struct{ Name string }{"treasury"})
	assert.Error(t, err)
	assert.Error(t, codec.Unmarshal([]byte{0xff}, out))
}
