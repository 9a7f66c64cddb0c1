// Copyright (c) dbsession Authors.
// Licensed under the MIT License.

/*
Package session 提供请求级的数据库连接会话。

一个 Session 从 Pool 中最多持有一个连接句柄，负责获取与归还；
由 Session 创建的事务管理器只借用该句柄，从不归还。

# 核心能力

  - InitializeConnection：从连接池获取连接，重复调用保留已持有的连接
  - Query / QueryOne：事务外执行语句，冲突时整批重试（仅适用于幂等语句）
  - Transaction：创建绑定当前连接的 transaction.Tx
  - ReleaseConnection：归还连接，无连接时为空操作
  - Terminate：关闭整个连接池

# 依赖注入

Middleware 为每个 HTTP 请求创建独立的 Session 并放入请求 context，
处理函数通过 FromContext 取用；请求结束（包括 panic）时自动归还连接。
非 HTTP 场景可使用 With 完成"获取、执行、归还"。
*/
package session
