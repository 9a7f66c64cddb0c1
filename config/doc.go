// Package config 提供 dbsession 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 DBSESSION）的顺序合并，
// 覆盖数据库连接池、冲突重试策略、语句并行度、事务严格模式、
// 日志与遥测。
package config
