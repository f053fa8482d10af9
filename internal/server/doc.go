/*
包 server 管理 CLI 运行期间的 Prometheus 指标监听。

# 概述

Manager 封装 net/http.Server，非阻塞启动、带超时的优雅关闭，
异步错误通过 Errors() 传出。MetricsHandler 构造只包含 /metrics
路由的处理器，可以绑定默认 Registry 或自定义 Gatherer。

metrics.enabled 且 metrics.addr 非空时，cmd/mediaflow 在执行子命令
前启动监听，命令结束后关闭。
*/
package server
