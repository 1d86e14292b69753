// internal/storage/redis_store.go
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/paystream/paystream/internal/transaction"
	pkgerrors "github.com/paystream/paystream/pkg/errors"
)

const (
	// Transaction key prefix for storing transaction records
	txKeyPrefix = "tx:"
)

// markProcessedScript transitions a record to PROCESSED only while it is
// still PROCESSING. Running entirely server-side keeps the check and the
// write atomic, so two concurrent settlement attempts cannot both apply.
// Returns -1 when the record is missing, 0 when already PROCESSED, 1 when
// the transition was applied.
var markProcessedScript = redis.NewScript(`
	local raw = redis.call("GET", KEYS[1])
	if not raw then
		return -1
	end

	local tx = cjson.decode(raw)
	if tx["status"] == "PROCESSED" then
		return 0
	end

	tx["status"] = "PROCESSED"
	tx["processed_at"] = ARGV[1]
	redis.call("SET", KEYS[1], cjson.encode(tx))
	return 1
`)

// RedisStore is a Redis-backed TransactionStore. Each record is stored as
// a JSON value under its transaction ID; uniqueness comes from SET NX.
type RedisStore struct {
	Client *redis.Client
}

// NewRedisStore creates a new Redis-backed transaction store and verifies
// connectivity.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, pkgerrors.StorageWrapWithCode(err, pkgerrors.OpConnect,
			pkgerrors.StorageErrConnection, fmt.Sprintf("failed to connect to Redis at %s", addr))
	}

	return &RedisStore{Client: client}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.Client.Close()
}

// Ping verifies the Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// Create inserts a new transaction record using SET NX so the uniqueness
// check and the write are a single atomic operation.
func (s *RedisStore) Create(ctx context.Context, tx *transaction.Transaction) error {
	data, err := tx.ToJSON()
	if err != nil {
		return pkgerrors.StorageWrapWithCode(err, pkgerrors.OpCreateTransaction,
			pkgerrors.StorageErrSerialization, "failed to serialize transaction")
	}

	created, err := s.Client.SetNX(ctx, txKeyPrefix+tx.TransactionID, data, 0).Result()
	if err != nil {
		return pkgerrors.StorageWrapWithCode(err, pkgerrors.OpCreateTransaction,
			pkgerrors.StorageErrWrite, "failed to store transaction")
	}

	if !created {
		return pkgerrors.NewStorageError(pkgerrors.StorageErrDuplicateKey,
			fmt.Sprintf("transaction %s already exists", tx.TransactionID),
			pkgerrors.ErrAlreadyExists)
	}

	return nil
}

// Get retrieves a transaction record by ID
func (s *RedisStore) Get(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	raw, err := s.Client.Get(ctx, txKeyPrefix+transactionID).Result()
	if err == redis.Nil {
		return nil, pkgerrors.NewStorageError(pkgerrors.StorageErrNotFound,
			fmt.Sprintf("transaction %s not found", transactionID),
			pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerrors.StorageWrapWithCode(err, pkgerrors.OpGetTransaction,
			pkgerrors.StorageErrRead, "failed to read transaction")
	}

	tx, err := transaction.FromJSON([]byte(raw))
	if err != nil {
		return nil, pkgerrors.StorageWrapWithCode(err, pkgerrors.OpGetTransaction,
			pkgerrors.StorageErrDeserialization, "failed to deserialize transaction")
	}

	return tx, nil
}

// MarkProcessed conditionally transitions a record to PROCESSED. The
// first writer wins; a record that is already PROCESSED is left untouched
// and false is returned.
func (s *RedisStore) MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error) {
	res, err := markProcessedScript.Run(ctx, s.Client,
		[]string{txKeyPrefix + transactionID},
		processedAt.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, pkgerrors.StorageWrapWithCode(err, pkgerrors.OpMarkProcessed,
			pkgerrors.StorageErrWrite, "failed to update transaction status")
	}

	switch res.(int64) {
	case -1:
		return false, pkgerrors.NewStorageError(pkgerrors.StorageErrNotFound,
			fmt.Sprintf("transaction %s not found", transactionID),
			pkgerrors.ErrNotFound)
	case 0:
		return false, nil
	default:
		return true, nil
	}
}
