// Package config 提供 mediaflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 MAX）的顺序合并，
// 在进程启动时读取一次。网关凭证对应 MAX_API_KEY，
// 网关地址对应 MAX_API_BASE_URL。
package config
