package main

// ============================================================================
// 職責說明：
// 1. CLI 應用程式入口點
// 2. 依容器 CPU 配額設定 GOMAXPROCS（Worker 預設數量）
// 3. 處理頂層錯誤與 panic recovery
// ============================================================================

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ChuLiYu/card-recovery/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	_, _ = maxprocs.Set()

	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
