/*
包 cache 提供基于 Redis 的任务存储。

# 概述

Store 保存两类数据：已完成任务的结果（按 endpoint 与 handle 为键，
可设置 TTL），以及最近提交的任务记录（定长列表，新记录在前）。
cache.enabled 时 CLI 的 submit 记录句柄，result 与 wait 优先读取缓存，
jobs 命令列出最近的提交。

测试使用 miniredis 作为内存中的 Redis 实现。
*/
package cache
