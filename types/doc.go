// Copyright (c) dbsession Authors.
// Licensed under the MIT License.

/*
Package types 提供 dbsession 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 query、retry、transaction、
session 等模块提供统一的类型契约，避免循环依赖。

# 核心类型

  - Handle：一条已签出的连接，执行单条语句并返回读取完毕的结果
  - Statement：SQL 文本与位置参数
  - Options：批量执行选项（Parallel）
  - Result / Outcome：单条结果与按输入顺序排列的多条结果
  - TransactionState：事务生命周期：uninitialized / active / terminated
  - Metadata：最近一次成功语句的连接标记、参考号与时间戳
  - Error / ErrorCode：结构化错误，含 Retryable 与 SQLSTATE

# 错误码

  - CONFIGURATION：请求形状错误，例如语句与参数数量不匹配
  - CONNECTION_UNAVAILABLE：需要连接的位置没有绑定连接
  - TRANSIENT_CONFLICT：序列化失败或死锁，可重试
  - DATABASE_EXECUTION：其它数据库错误
  - TRANSACTION_PROTOCOL：跨越事务边界的失败，原因保留在 Cause 中

GetErrorCode 返回最外层错误码，RootCode 返回最内层错误码，
HasCode 检查整条错误链。
*/
package types
