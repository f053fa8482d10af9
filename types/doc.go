/*
Package types 提供 mediaflow 的共享错误类型。

# 概述

types 是最底层的公共包，不依赖任何内部包。gateway、media 与 CLI
通过 Error / ErrorCode 传递结构化错误，CLI 依据错误码决定退出码。

# 错误码

  - CONFIGURATION：凭证缺失或配置无效
  - INVALID_REQUEST / UNAUTHORIZED / FORBIDDEN / NOT_FOUND：请求侧错误
  - RATE_LIMITED / QUOTA_EXCEEDED / MODEL_OVERLOADED / UPSTREAM_ERROR：上游错误
  - INVALID_RESPONSE / PROTOCOL / UPLOAD_UNAVAILABLE：响应不符合约定
  - JOB_FAILED / TIMEOUT：队列任务结局
  - FILE_NOT_FOUND / IO：本地文件错误

# 辅助函数

AsError 沿错误链查找 *Error；IsCode、IsRetryable、GetErrorCode 基于它判断。
*/
package types
