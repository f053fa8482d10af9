/*
Package main 提供 mediaflow 命令行程序入口。

# 概述

cmd/mediaflow 是媒体推理网关的命令行客户端：生成图片与视频、
对图片/视频/音频提问、直接调用端点、操作排队任务、上传下载文件
以及批量执行 YAML 中的任务。

# 主要能力

  - 子命令：image、understand、video、run、submit、status、result、
    wait、upload、download、batch、jobs、version、help
  - 配置：默认值 → --config 指定的 YAML → MAX_ 前缀环境变量
  - 日志：zap，console 或 json 编码，输出到 stderr
  - 指标：metrics.enabled 时记录网关调用，metrics.addr 非空时暴露 /metrics
  - 遥测：telemetry.enabled 时通过 OTLP 导出 span
  - 任务存储：cache.enabled 时 submit 记录句柄，result/wait 优先读 Redis 缓存
  - 退出码：0 成功，1 失败，2 用法或配置错误
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置

结果写到 stdout（文件路径、JSON 或文本），进度与状态写到 stderr。
*/
package main
