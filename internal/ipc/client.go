package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start capturing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to quit.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Capture takes a screenshot now.
func (c *Client) Capture() (*CaptureResponse, error) {
	return call[CaptureRequest, CaptureResponse](c, "Capture", CaptureRequest{})
}

// Assemble builds the timelapse for date (empty for today).
func (c *Client) Assemble(date string, force bool) (*AssembleResponse, error) {
	return call[AssembleRequest, AssembleResponse](c, "Assemble", AssembleRequest{Date: date, Force: force})
}

// Backlog assembles every eligible bucket that lacks a timelapse.
func (c *Client) Backlog(includeToday bool) (*BacklogResponse, error) {
	return call[BacklogRequest, BacklogResponse](c, "Backlog", BacklogRequest{IncludeToday: includeToday})
}

// List returns every bucket with its artifact state.
func (c *Client) List() (*ListResponse, error) {
	return call[ListRequest, ListResponse](c, "List", ListRequest{})
}

// OpenToday resolves today's screenshot folder.
func (c *Client) OpenToday() (*OpenTodayResponse, error) {
	return call[OpenTodayRequest, OpenTodayResponse](c, "OpenToday", OpenTodayRequest{})
}
