// Copyright (c) dbsession Authors.
// Licensed under the MIT License.

/*
包 transaction 提供绑定单个连接句柄的事务生命周期管理。

# 状态机

	Uninitialized --Init--> Active --Commit/Rollback--> Terminated

Tx 只借用句柄，从不归还。Query 经由 retry.Executor 调用 query.Runner，
成功后刷新引用号与时间戳（覆盖而非合并）。Commit 与 Rollback 没有客户端
保护，重复调用会再次发送命令。Rollback 永不返回错误，适合在清理路径中
无条件调用。

# 错误

已分类的数据库错误穿过事务边界时被包装为 TRANSACTION_PROTOCOL，
原始错误保留为 Cause，可用 types.RootCode 取得内层错误码。

# 严格模式

默认允许在 Init 之前调用 Query；Deps.Strict 为 true 时，非 Active
状态下的 Query 返回 TRANSACTION_PROTOCOL。
*/
package transaction
