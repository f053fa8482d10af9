package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/BaSui01/mediaflow/types"
)

// Runner 同步执行一个端点
// *Client 走网关 run 路由，chatcompat.Runner 直连 chat-completions 后端。
type Runner interface {
	Run(ctx context.Context, endpoint string, input any) (any, error)
}

var _ Runner = (*Client)(nil)

// Run 执行 POST {base}/run/{endpoint}
// 不轮询，也不自动重试：重复执行可能产生重复计费。
func (c *Client) Run(ctx context.Context, endpoint string, input any) (any, error) {
	enc, err := EncodeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	body, err := marshalInput(input)
	if err != nil {
		return nil, annotate(err, endpoint)
	}

	payload, err := c.transport.Send(ctx, &Request{
		Method:  http.MethodPost,
		URL:     c.base + "/run/" + enc,
		Header:  c.jsonHeader(),
		Body:    bytes.NewReader(body),
		Route:   "run",
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, annotate(err, endpoint)
	}
	return payload, nil
}

func marshalInput(input any) ([]byte, error) {
	if input == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode job input").WithCause(err)
	}
	return body, nil
}
