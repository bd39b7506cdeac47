package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

const badgerComponent = "storage.BadgerStorage"

type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewBadgerStorage(config domain.StorageConfig, logger *slog.Logger) (*BadgerStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger-storage")

	opts := badger.DefaultOptions(config.DataDir).
		WithSyncWrites(config.SyncWrites).
		WithLogger(&badgerLogger{logger: logger})
	if config.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	} else if config.DataDir == "" {
		return nil, domain.NewConfigurationError("storage data dir is required", domain.ErrInvalidConfig,
			domain.WithComponent(badgerComponent))
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewStorageError("failed to open badger", err, domain.WithComponent(badgerComponent))
	}

	logger.Debug("badger storage opened", "data_dir", config.DataDir, "in_memory", config.InMemory)
	return &BadgerStorage{db: db, logger: logger}, nil
}

func (s *BadgerStorage) Get(key string) (value []byte, exists bool, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		exists = true
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}
	return value, exists, nil
}

func (s *BadgerStorage) Put(key string, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return s.wrap("put", key, err)
}

func (s *BadgerStorage) Delete(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return s.wrap("delete", key, err)
}

func (s *BadgerStorage) BatchWrite(ops []ports.WriteOp) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			switch op.Type {
			case ports.OpPut:
				if err := txn.Set([]byte(op.Key), op.Value); err != nil {
					return err
				}
			case ports.OpDelete:
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
			default:
				return domain.ErrInvalidInput
			}
		}
		return nil
	})
	return s.wrap("batch_write", fmt.Sprintf("%d ops", len(ops)), err)
}

func (s *BadgerStorage) ListByPrefix(prefix string) ([]ports.KeyValue, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var results []ports.KeyValue
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results = append(results, ports.KeyValue{
				Key:   string(item.KeyCopy(nil)),
				Value: value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("list_by_prefix", prefix, err)
	}
	return results, nil
}

func (s *BadgerStorage) CountPrefix(prefix string) (count int, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, s.wrap("count_prefix", prefix, err)
}

func (s *BadgerStorage) DeleteByPrefix(prefix string) (deletedCount int, err error) {
	keys, err := s.ListByPrefix(prefix)
	if err != nil {
		return 0, err
	}

	ops := make([]ports.WriteOp, 0, len(keys))
	for _, kv := range keys {
		ops = append(ops, ports.WriteOp{Type: ports.OpDelete, Key: kv.Key})
		deletedCount++
	}

	if len(ops) > 0 {
		err = s.BatchWrite(ops)
	}
	return deletedCount, err
}

func (s *BadgerStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.NewStorageError("storage already closed", nil, domain.WithComponent(badgerComponent))
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStorage) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.NewStorageError("storage is closed", nil, domain.WithComponent(badgerComponent))
	}
	return nil
}

func (s *BadgerStorage) wrap(operation, key string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewStorageError(operation+" failed", err,
		domain.WithComponent(badgerComponent),
		domain.WithOperation(operation),
		domain.WithDetail("key", key))
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
