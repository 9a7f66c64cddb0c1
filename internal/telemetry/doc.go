// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 dbsession 提供集中式的 TracerProvider 和 MeterProvider 配置。
// query.Runner 的语句 span 通过全局 TracerProvider 导出，
// RegisterPoolMetrics 把连接池统计注册为可观测仪表。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
