// 版权所有 2024 dbsession Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，是 session.Pool 的
生产实现。

# 概述

本包通过 PoolManager 封装 GORM 与 database/sql 的连接池配置，
统一管理连接生命周期、空闲回收与最大连接数限制。Acquire 从池中
检出一个专用物理连接并包装为 Conn，Release 将其归还。后台健康检查
定时探活，并把连接池统计交给 StatsObserver。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 Acquire()、Release()、Ping()、Stats()、Close() 等方法。
  - Conn：单连接句柄，实现 types.Handle；语句在连接级互斥锁内
    执行并读完全部结果，允许并行分发。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - PoolStats：友好格式的连接池统计信息。

# 驱动

Open 按驱动名选择 Dialector：postgres（pgx）、mysql、
sqlite（纯 Go 实现，无需 cgo）。
*/
package database
