package ports

import "context"

// WalletService is the custody layer backing the ledger: it owns the account
// balances that packets escrow from and pay out to. Transfers are atomic;
// a failed transfer leaves both accounts untouched.
type WalletService interface {
	Balance(ctx context.Context, account, asset string) (uint64, error)
	Deposit(ctx context.Context, account, asset string, amount uint64) error
	Transfer(ctx context.Context, from, to, asset string, amount uint64) error
	Close()
}
