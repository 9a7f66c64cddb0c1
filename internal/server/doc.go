// 版权所有 2024 dbsession Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 dbsession 运维 HTTP 服务：健康检查与 Prometheus 指标。

# 核心类型

  - Manager：启动前 ping 数据库，关闭时先停止 HTTP 服务、等待在途
    请求结束，再关闭 Backend。Run 阻塞到 ctx 结束后按此顺序退出。
  - Backend：HealthChecker 加 Close，由 *dbsession.DB 实现。
  - Config：监听地址与超时；ConfigFrom 从 config.ServerConfig 转换。

# 路由

  - GET /health：数据库可达返回 200，否则 503，响应体均含连接池统计。
  - GET /metrics：Prometheus 文本格式指标。
*/
package server
