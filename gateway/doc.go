// Package gateway 是媒体推理网关的异步任务客户端。
//
// # 概述
//
// Client 封装了网关的全部线协议：
//
//   - Run: POST {base}/run/{endpoint}，同步执行
//   - Submit / Status / Result: 队列提交、状态查询、结果获取
//   - Wait / SubmitAndWait: 固定间隔轮询直到终态或超时
//   - Upload / Download: multipart 上传与背压流式下载
//
// 所有失败都以 *types.Error 返回，HTTP 状态、原始负载、任务终态
// 与本地路径分别记录在对应字段中。
//
// # 轮询
//
// Wait 以固定间隔查询状态，每个新的非空状态只通知 Observer 一次。
// COMPLETED 立即返回；FAILED、CANCELLED、ERROR 立即失败且不重试；
// 预算耗尽返回 TIMEOUT。时钟与等待通过 Clock 注入，测试无需真实延迟。
//
// # 响应形状
//
// 网关响应字段并不统一。任务句柄、上传地址、错误消息都通过
// 有序的 Rules 提取，规则按优先级依次尝试。
package gateway
