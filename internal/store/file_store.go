package store

// ============================================================================
// 職責說明：
// 1. 讀取輸入文字檔（hash、BIN、末碼），去除首尾空白
// 2. 以原子性寫入（temp file + rename）保存復原結果，避免半寫入的檔案
// 3. 對搜尋核心只暴露 Saver 介面，核心不依賴檔案系統
// ============================================================================

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrEmptyDestination = errors.New("store: destination path is empty")
	ErrEmptyInput       = errors.New("store: input file is empty")
)

// Saver persists text to a destination. The search core only depends on this contract.
type Saver interface {
	Save(text, destination string) error
}

// Loader reads text inputs such as the target digest or BIN.
type Loader interface {
	Load(path string) (string, error)
}

// FileStore implements Saver and Loader on the local filesystem.
type FileStore struct {
	mu sync.Mutex // 保護同一路徑的並發寫入
}

// NewFileStore 建立檔案存取實例
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save 原子性寫入 text 到 destination
//
// 寫入流程：
// 1. 建立上層目錄
// 2. 寫入同目錄下的臨時檔案（.tmp）
// 3. 使用 os.Rename 原子性替換目標檔案
func (s *FileStore) Save(text, destination string) error {
	if destination == "" {
		return ErrEmptyDestination
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", destination, err)
		}
	}

	tmpPath := destination + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		// 重新命名失敗，清理臨時檔案
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}

	return nil
}

// Load 讀取 path 的內容並去除首尾空白
// 檔案內容為空時返回 ErrEmptyInput
func (s *FileStore) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyInput, path)
	}
	return text, nil
}
