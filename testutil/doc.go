// Copyright 2026 dbsession Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 dbsession 测试的共享工具。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 结果断言: RequireRows 同时校验行内容与 RowCount

# 子包

  - testutil/mocks: FakeHandle 与 FakePool，支持按 SQL 固定结果、
    错误注入、按次失败、延迟模拟，并记录调用顺序与最大并发
*/
package testutil
