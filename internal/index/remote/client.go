package remote

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"kvbench/internal/index"
)

const Name = "remote"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return Dial(cfg)
	})
}

// Client implements index.Index by calling a Server. Transport errors count
// as failed operations.
type Client struct {
	conn    *grpc.ClientConn
	cfg     index.Config
	timeout time.Duration
}

var (
	_ index.Index      = (*Client)(nil)
	_ index.BulkLoader = (*Client)(nil)
)

// Dial connects to cfg.Addr. Option "timeout" bounds each call.
func Dial(cfg index.Config, opts ...grpc.DialOption) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("remote index requires an address")
	}
	timeout, err := time.ParseDuration(cfg.Option("timeout", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote timeout option: %w", err)
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(maxMessageSize)),
	}, opts...)
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", cfg.Addr, err)
	}
	return &Client{conn: conn, cfg: cfg, timeout: timeout}, nil
}

func (c *Client) invoke(method string, req []byte, resp interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, wrapperspb.Bytes(req), resp)
}

func (c *Client) boolCall(method string, req []byte) bool {
	resp := new(wrapperspb.BoolValue)
	if err := c.invoke(method, req, resp); err != nil {
		return false
	}
	return resp.GetValue()
}

func (c *Client) Find(key []byte, valueOut []byte) bool {
	resp := new(wrapperspb.BytesValue)
	if err := c.invoke("Find", encodeKeyCount(key, len(valueOut)), resp); err != nil {
		return false
	}
	frame := resp.GetValue()
	if len(frame) == 0 || frame[0] == 0 {
		return false
	}
	copy(valueOut, frame[1:])
	return true
}

func (c *Client) Insert(key, value []byte) bool {
	return c.boolCall("Insert", encodeKeyValue(key, value))
}

func (c *Client) Update(key, value []byte) bool {
	return c.boolCall("Update", encodeKeyValue(key, value))
}

func (c *Client) Remove(key []byte) bool {
	return c.boolCall("Remove", appendKey(nil, key))
}

func (c *Client) Scan(key []byte, count int, valuesOut []byte) int {
	req := binary.AppendUvarint(encodeKeyCount(key, count), uint64(c.cfg.ValueSize))
	resp := new(wrapperspb.BytesValue)
	if err := c.invoke("Scan", req, resp); err != nil {
		return 0
	}
	n, values, err := decodeCount(resp.GetValue())
	if err != nil {
		return 0
	}
	copy(valuesOut, values)
	return n
}

// BulkLoad ships the whole data set in one call; the server's message size
// limit applies.
func (c *Client) BulkLoad(data []byte, count int) error {
	req := make([]byte, 0, len(data)+binary.MaxVarintLen64)
	req = binary.AppendUvarint(req, uint64(count))
	req = append(req, data...)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	resp := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/BulkLoad", wrapperspb.Bytes(req), resp); err != nil {
		return fmt.Errorf("remote bulk load failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
