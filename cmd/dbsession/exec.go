package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BaSui01/dbsession"
	"github.com/BaSui01/dbsession/session"
	"github.com/BaSui01/dbsession/transaction"
	"github.com/BaSui01/dbsession/types"
)

// execRequest 描述一次 exec 命令要执行的语句
type execRequest struct {
	Statements []types.Statement
	Options    types.Options
	// Transactional 为 true 时所有语句在同一事务中执行
	Transactional bool
}

// execOutput 是 exec 命令的 JSON 输出
type execOutput struct {
	Results  []*types.Result `json:"results"`
	Metadata *types.Metadata `json:"metadata,omitempty"`
}

// runExec 在一个会话中执行语句并把结果以 JSON 写入 w
func runExec(ctx context.Context, db *dbsession.DB, req execRequest, w io.Writer) error {
	var out execOutput

	err := db.With(ctx, func(ctx context.Context, s *session.Session) error {
		if !req.Transactional {
			outcome, err := s.Query(ctx, req.Statements, req.Options)
			if err != nil {
				return err
			}
			out.Results = outcome.All()
			return nil
		}

		return transaction.Run(ctx, s.Transaction(), func(ctx context.Context, tx *transaction.Tx) error {
			outcome, err := tx.Query(ctx, req.Statements, req.Options)
			if err != nil {
				return err
			}
			out.Results = outcome.All()
			meta := tx.Retrieve()
			out.Metadata = &meta
			return nil
		})
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readStatements 收集命令行参数中的语句，file 非空时追加文件中以 ; 分隔的语句，
// file 为 "-" 时从标准输入读取
func readStatements(args []string, file string) ([]types.Statement, error) {
	stmts := make([]types.Statement, 0, len(args))
	for _, a := range args {
		if sql := strings.TrimSpace(a); sql != "" {
			stmts = append(stmts, types.Statement{SQL: sql})
		}
	}

	if file != "" {
		var r io.Reader = os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, fmt.Errorf("failed to open statements file: %w", err)
			}
			defer f.Close()
			r = f
		}
		fromFile, err := splitStatements(r)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fromFile...)
	}

	if len(stmts) == 0 {
		return nil, fmt.Errorf("no statements given")
	}
	return stmts, nil
}

// splitStatements 以 ; 切分语句，忽略空语句与 -- 注释行
func splitStatements(r io.Reader) ([]types.Statement, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statements: %w", err)
	}

	var stmts []types.Statement
	for _, part := range strings.Split(b.String(), ";") {
		if sql := strings.TrimSpace(part); sql != "" {
			stmts = append(stmts, types.Statement{SQL: sql})
		}
	}
	return stmts, nil
}
