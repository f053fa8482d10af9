// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为 mediaflow 的网关调用与批处理任务安装 TracerProvider 和 MeterProvider。
// 遥测关闭时使用 noop 实现，不连接任何外部服务。
package telemetry
