// Package retry 提供有界重试能力。
//
// 网关客户端只在等待轮询中使用它重试状态查询；
// 直接运行与队列提交不会被自动重试，以免重复计费。
package retry
