// =============================================================================
// dbsession 主入口
// =============================================================================
// 命令行工具：在一个会话中执行语句，或启动健康检查与指标服务
//
// 使用方法:
//
//	dbsession serve --config dbsession.yaml          # 启动运维 HTTP 服务
//	dbsession exec "SELECT 1"                       # 在事务中执行语句
//	dbsession exec --parallel "SELECT 1" "SELECT 2" # 并行执行
//	dbsession exec --no-tx -f schema.sql            # 不开事务，从文件读取
//	dbsession ping                                  # 检查数据库连通性
//	dbsession health --addr http://localhost:8080   # 检查运维服务
//	dbsession version                               # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/dbsession"
	"github.com/BaSui01/dbsession/internal/server"
	"github.com/BaSui01/dbsession/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "exec":
		err = runExecCommand(os.Args[2:])
	case "ping":
		err = runPing(os.Args[2:])
	case "health":
		err = runHealthCheck(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := types.GetErrorCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "Code: %s\n", code)
		}
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, envKeys, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting dbsession",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.Strings("env_overrides", envKeys),
	)

	db, err := dbsession.Open(cfg, dbsession.WithLogger(logger))
	if err != nil {
		return err
	}

	handler := Chain(
		server.NewMux(db, prometheus.DefaultGatherer, logger),
		Recovery(logger),
		RequestID(),
		OTelTracing(),
		RequestLogger(logger),
		MetricsMiddleware(db.Collector()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// manager 先停 HTTP 再关闭 db
	manager := server.NewManager(db, handler, server.ConfigFrom(cfg.Server), logger)
	if err := manager.Run(ctx); err != nil {
		return err
	}

	logger.Info("dbsession stopped")
	return nil
}

// =============================================================================
// ▶️ exec 命令
// =============================================================================

func runExecCommand(args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	file := fs.String("f", "", "Read ';'-separated statements from file ('-' for stdin)")
	parallel := fs.Bool("parallel", false, "Dispatch statements concurrently on the session's connection")
	noTx := fs.Bool("no-tx", false, "Run statements without BEGIN/COMMIT")
	timeout := fs.Duration("timeout", time.Minute, "Overall timeout")
	_ = fs.Parse(args)

	stmts, err := readStatements(fs.Args(), *file)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	db, err := dbsession.Open(cfg, dbsession.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	return runExec(ctx, db, execRequest{
		Statements:    stmts,
		Options:       types.Options{Parallel: *parallel},
		Transactional: !*noTx,
	}, os.Stdout)
}

// =============================================================================
// 🏓 ping 命令
// =============================================================================

func runPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 5*time.Second, "Ping timeout")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	// 单次命令不需要后台健康检查
	cfg.Database.HealthCheckInterval = 0

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	db, err := dbsession.Open(cfg, dbsession.WithLogger(logger), dbsession.WithoutMetrics())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(db.GetStats())
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	_ = fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}

	fmt.Println("OK")
	return nil
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("dbsession %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`dbsession - deadlock-aware SQL session runner

Usage:
  dbsession <command> [options]

Commands:
  serve     Start the health and metrics server
  exec      Run statements in one session
  ping      Check database connectivity
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'exec':
  --config <path>   Path to configuration file (YAML)
  -f <file>         Read ';'-separated statements from file ('-' for stdin)
  --parallel        Dispatch statements concurrently
  --no-tx           Run without a transaction
  --timeout <d>     Overall timeout (default 1m)

Examples:
  dbsession serve --config /etc/dbsession/config.yaml
  dbsession exec "UPDATE accounts SET balance = balance - 10 WHERE id = 1"
  dbsession exec --parallel "SELECT count(*) FROM a" "SELECT count(*) FROM b"
  dbsession ping
  dbsession version`)
}
