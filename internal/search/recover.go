package search

import (
	"context"
	"fmt"

	"github.com/ChuLiYu/card-recovery/internal/luhn"
	"github.com/ChuLiYu/card-recovery/internal/store"
	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// Outputs names where a recovered number and its Luhn verdict are written.
// An empty path skips that file.
type Outputs struct {
	CardNumber string
	Result     string
}

// Recover 執行搜尋，找到號碼後保存號碼與 Luhn 驗證結果
//
// 只有 found 會寫入 saver；not_found / cancelled / 錯誤都不會產生輸出檔案。
// 保存失敗時仍返回搜尋結果，error 包裝 saver 的錯誤。
func (e *Engine) Recover(ctx context.Context, spec types.SearchSpec, saver store.Saver, out Outputs, onProgress ProgressFunc) (types.SearchResult, error) {
	result, err := e.Search(ctx, spec, onProgress)
	if err != nil || !result.Found() {
		return result, err
	}

	logger := e.log.With("search_id", result.SearchID)

	if out.CardNumber != "" {
		if err := saver.Save(result.Number, out.CardNumber); err != nil {
			return result, fmt.Errorf("save card number: %w", err)
		}
	}
	if out.Result != "" {
		verdict := luhn.Verdict(result.Number)
		if err := saver.Save(verdict, out.Result); err != nil {
			return result, fmt.Errorf("save luhn verdict: %w", err)
		}
		logger.Info("Luhn verdict saved", "valid", luhn.IsValid(result.Number), "path", out.Result)
	}
	return result, nil
}
