// 版权所有 2024 dbsession Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
dbsession 命令行工具。

# 命令

  - serve：启动运维 HTTP 服务，提供 /health 与 /metrics，
    请求经过 Recovery、RequestID、OTelTracing、RequestLogger 与
    MetricsMiddleware 中间件链。
  - exec：获取一个会话，默认在单个事务中执行语句并输出 JSON 结果
    与事务元数据；--parallel 在同一连接上并发执行，--no-tx 跳过事务。
  - ping：检查数据库连通性并输出连接池统计。
  - health：请求运维服务的 /health。
  - version：打印构建信息。

配置通过 --config 指定 YAML 文件，并可用 DBSESSION_ 前缀的环境变量覆盖。
*/
package main
