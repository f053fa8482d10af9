/*
Package testutil 提供 mediaflow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 假时钟: FakeClock 实现 Now / Sleep，轮询测试无需真实等待
  - 文件辅助: WriteTempFile / ReadFile
  - 数据工具: MustJSON / AssertJSONEqual / WaitFor

# 子包

  - testutil/mocks: MockGateway，基于 httptest 的网关模拟，
    支持按端点配置 run / queue 响应、状态序列、上传与下载
  - testutil/fixtures: 网关负载样例（图像结果、chat 响应、小图片字节）

# 使用示例

	gw := mocks.NewMockGateway(t).
	    WithSubmit("fal-ai/flux/dev", "req-1").
	    WithStatuses("req-1", "QUEUED", "COMPLETED")
	client, _ := gateway.NewClient(gateway.ClientConfig{APIKey: mocks.APIKey, BaseURL: gw.BaseURL()})
*/
package testutil
