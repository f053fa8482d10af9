/*
包 metrics 提供基于 Prometheus 的网关客户端指标采集。

# 概述

Collector 实现 gateway.Recorder，使用 promauto 注册到默认 Registry，
CLI 通过 promhttp 暴露 /metrics。所有指标按 namespace 隔离。

# 主要能力

  - 网关请求：请求总数与耗时，按 method/route/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx，429 单独保留，网络失败记为 error。
  - 队列任务：状态变化次数与最终结局（COMPLETED、FAILED、TIMEOUT）。
  - 传输：上传与下载字节数。
  - 用量：理解类调用返回的 prompt/completion token 数。
  - 批处理：按模式与结果统计任务数。
*/
package metrics
