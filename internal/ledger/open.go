package ledger

import (
	"fmt"

	"order_payment/internal/config"
	"order_payment/internal/model"
)

// Open builds the ledger client selected by LEDGER_MODE. The memory ledger is
// funded with LEDGER_SEED so refunds can settle in dev.
func Open(cfg config.AppConfig) (Client, error) {
	switch cfg.LedgerMode {
	case config.LedgerHTTP:
		return NewHTTPClient(cfg.LedgerURL, cfg.LedgerAccount, cfg.TransferTimeout), nil
	case config.LedgerMemory:
		mem := NewMemory(cfg.LedgerAccount)
		seed, err := model.ParseAmount(cfg.LedgerSeed)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGER_SEED: %w", err)
		}
		if err := mem.Fund(seed); err != nil {
			return nil, err
		}
		return mem, nil
	default:
		return nil, fmt.Errorf("unsupported ledger mode %q", cfg.LedgerMode)
	}
}
