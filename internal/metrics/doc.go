// 版权所有 2024 dbsession Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
SQL 语句、冲突重试、事务生命周期与连接池五个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。
Collector 直接实现各组件的观察者接口，组合根只需把同一个实例
注入 query.Runner、retry.Executor、transaction 与 database.PoolManager。

# 主要能力

  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 语句指标：按 sequential/parallel 与最内层错误码分组的执行次数和耗时。
  - 冲突重试指标：按 SQLSTATE 分组的重试次数、退避时长与耗尽次数。
  - 事务指标：begin/query/commit/rollback 的成功与失败计数。
  - 连接池指标：打开、使用中、空闲连接数与等待次数 Gauge。
*/
package metrics
