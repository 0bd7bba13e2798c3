package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rmarchant/rebal-backend/internal/models"
)

const csvHeader = "ts,txHash,sellSymbol,buySymbol,notionalUsd,estBuyUsd,reason"

// TradeLog appends trade records to a CSV file. The header row is written
// once, when the first record is appended. Append-only, single writer.
type TradeLog struct {
	mu   sync.Mutex
	path string
}

func NewTradeLog(path string) *TradeLog {
	return &TradeLog{path: path}
}

func (l *TradeLog) Append(_ context.Context, rec *models.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	line := strings.Join([]string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.TxHash,
		rec.SellSymbol,
		rec.BuySymbol,
		fmt.Sprintf("%.2f", rec.NotionalUsd),
		fmt.Sprintf("%.4f", rec.EstBuyUsd),
		sanitizeField(rec.Reason),
	}, ",") + "\n"

	_, statErr := os.Stat(l.path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if newFile {
		if _, err := f.WriteString(csvHeader + "\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(line)
	return err
}

// sanitizeField keeps free-text fields from breaking the CSV layout.
func sanitizeField(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
