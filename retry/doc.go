// Copyright (c) dbsession Authors.
// Licensed under the MIT License.

/*
包 retry 提供识别死锁与序列化失败的有界重试执行器。

# 概述

Executor 将一个工作单元（一次或多次 SQL 执行）包裹在有界重试循环中。
只有数据库并发控制产生的瞬时冲突（PostgreSQL 40001 / 40P01、
MySQL 1213 / 1205）会触发重试，其余错误原样返回。

# 核心类型

  - Policy：尝试次数、初始延迟、延迟上限与倍数，Delay 保证单调不减且大于零。
  - Executor：执行器，支持自定义冲突判定、等待函数与指标观察者。
  - Run / Do：泛型与无返回值两种入口。
  - IsConflict / SQLState：冲突识别与 SQLSTATE 提取。
*/
package retry
