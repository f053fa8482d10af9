package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/types"
)

// Submit 提交任务到队列：POST {base}/queue/{endpoint}
// 响应中没有任务句柄视为协议错误。
func (c *Client) Submit(ctx context.Context, endpoint string, input any) (*Submission, error) {
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
		URL:     c.base + "/queue/" + enc,
		Header:  c.jsonHeader(),
		Body:    bytes.NewReader(body),
		Route:   "queue.submit",
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, annotate(err, endpoint)
	}

	handle, ok := handleRules.First(payload)
	if !ok {
		raw, _ := json.Marshal(payload)
		return nil, types.Errorf(types.ErrProtocol, "Queue submit response missing request_id: %s", truncate(string(raw), maxErrorTextLen)).
			WithEndpoint(endpoint).
			WithPayload(payload)
	}

	c.logger.Debug("job submitted",
		zap.String("endpoint", endpoint),
		zap.String("request_id", handle),
	)
	return &Submission{RequestID: handle, Raw: payload}, nil
}

// Status 查询任务状态：GET {base}/queue/{endpoint}/requests/{handle}/status
func (c *Client) Status(ctx context.Context, endpoint, handle string) (*StatusRecord, error) {
	u, err := c.requestURL(endpoint, handle, "/status")
	if err != nil {
		return nil, err
	}

	payload, err := c.transport.Send(ctx, &Request{
		Method:  http.MethodGet,
		URL:     u,
		Header:  c.authHeader(),
		Route:   "queue.status",
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, annotate(err, endpoint)
	}
	return newStatusRecord(payload), nil
}

// Result 获取任务结果：GET {base}/queue/{endpoint}/requests/{handle}
// 只在 COMPLETED 之后有意义。
func (c *Client) Result(ctx context.Context, endpoint, handle string) (any, error) {
	u, err := c.requestURL(endpoint, handle, "")
	if err != nil {
		return nil, err
	}

	payload, err := c.transport.Send(ctx, &Request{
		Method:  http.MethodGet,
		URL:     u,
		Header:  c.authHeader(),
		Route:   "queue.result",
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, annotate(err, endpoint)
	}
	return payload, nil
}

func (c *Client) requestURL(endpoint, handle, suffix string) (string, error) {
	enc, err := EncodeEndpoint(endpoint)
	if err != nil {
		return "", err
	}
	encHandle, err := EncodeHandle(handle)
	if err != nil {
		return "", annotate(err, endpoint)
	}
	return c.base + "/queue/" + enc + "/requests/" + encHandle + suffix, nil
}
