package badgerwallet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/hongbao-labs/packetd/internal/core/ports"
	apperrors "github.com/hongbao-labs/packetd/pkg/errors"
	"github.com/timshannon/badgerhold/v4"
)

const (
	walletStoreDir = "wallet"
	maxRetries     = 5
)

type accountDTO struct {
	Account   string
	Asset     string
	Balance   uint64
	UpdatedAt int64
}

// service is the custody layer: a badger-backed map of (account, asset)
// balances mutated only through atomic transfers. It backs the ledger's
// escrow account as well as every creator and claimant account.
type service struct {
	store *badgerhold.Store
}

func NewService(config ...interface{}) (ports.WalletService, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, walletStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet store: %s", err)
	}

	return &service{store}, nil
}

func (s *service) Balance(ctx context.Context, account, asset string) (uint64, error) {
	var dto accountDTO
	if err := s.store.Get(accountKey(account, asset), &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return dto.Balance, nil
}

func (s *service) Deposit(ctx context.Context, account, asset string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("deposit amount must be greater than 0")
	}
	return s.withConflictRetry(func() error {
		return s.store.Badger().Update(func(tx *badger.Txn) error {
			dto, err := s.getOrInit(tx, account, asset)
			if err != nil {
				return err
			}
			dto.Balance += amount
			dto.UpdatedAt = time.Now().Unix()
			return s.store.TxUpsert(tx, accountKey(account, asset), dto)
		})
	})
}

func (s *service) Transfer(
	ctx context.Context, from, to, asset string, amount uint64,
) error {
	if amount == 0 {
		return fmt.Errorf("transfer amount must be greater than 0")
	}
	if from == to {
		return fmt.Errorf("cannot transfer to the same account")
	}
	return s.withConflictRetry(func() error {
		return s.store.Badger().Update(func(tx *badger.Txn) error {
			sender, err := s.getOrInit(tx, from, asset)
			if err != nil {
				return err
			}
			if sender.Balance < amount {
				return apperrors.INSUFFICIENT_FUNDS.New(
					"account %s holds %d, %d required", from, sender.Balance, amount,
				).WithMetadata(apperrors.EscrowMetadata{
					Account: from, Asset: asset, Amount: amount,
				})
			}
			receiver, err := s.getOrInit(tx, to, asset)
			if err != nil {
				return err
			}

			now := time.Now().Unix()
			sender.Balance -= amount
			sender.UpdatedAt = now
			receiver.Balance += amount
			receiver.UpdatedAt = now

			if err := s.store.TxUpsert(tx, accountKey(from, asset), sender); err != nil {
				return err
			}
			return s.store.TxUpsert(tx, accountKey(to, asset), receiver)
		})
	})
}

func (s *service) Close() {
	// nolint:all
	s.store.Close()
}

func (s *service) getOrInit(tx *badger.Txn, account, asset string) (accountDTO, error) {
	var dto accountDTO
	err := s.store.TxGet(tx, accountKey(account, asset), &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return accountDTO{Account: account, Asset: asset}, nil
	}
	if err != nil {
		return accountDTO{}, err
	}
	return dto, nil
}

func (s *service) withConflictRetry(update func() error) error {
	err := update()
	if errors.Is(err, badger.ErrConflict) {
		attempts := 1
		for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
			time.Sleep(100 * time.Millisecond)
			err = update()
			attempts++
		}
	}
	return err
}

func accountKey(account, asset string) string {
	return fmt.Sprintf("%s/%s", account, asset)
}

func createDB(dir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dir) <= 0

	opts := badger.DefaultOptions(dir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
