package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
)

// Key prefixes partition the single Badger keyspace into the node table, the
// forward edge table, the reverse edge index, and auxiliary record tables
// (repository config, agent sessions).
const (
	prefixNode    = "node!"
	prefixEdge    = "edge!"
	prefixRevEdge = "redge!"

	// keySep separates id components inside edge keys. Node ids contain '#'
	// but never a NUL byte, so the separator is unambiguous.
	keySep = "\x00"
)

// Config holds configuration for the graph store.
type Config struct {
	// Path is the directory for Badger files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence. Used by tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns production defaults for a store rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no sync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is the durable keyed storage for nodes and edges. It is the single
// owner of graph records: the ingestion crawler writes through it and the
// query algorithms read through it. Writes are last-write-wins overwrites
// with no cross-write transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLogger adapts slog to Badger's internal logger interface.
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

// Open opens (creating if needed) the graph store described by cfg.
// The caller must Close the returned store.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("graph store path required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnusable, err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health verifies the store is open and readable.
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil || s.db.IsClosed() {
		return ErrStoreClosed
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// forwardEdgeKey sorts edges by origin then type then destination, so one
// prefix scan answers "all edges out of X" and a longer prefix answers
// "all edges of type T out of X".
func forwardEdgeKey(fromID string, edgeType EdgeType, toID string) []byte {
	return []byte(prefixEdge + fromID + keySep + string(edgeType) + keySep + toID)
}

// reverseEdgeKey sorts edges by destination only. Type filtering on the
// reverse path happens client-side after the fetch; see IncomingEdges.
func reverseEdgeKey(toID, fromID string, edgeType EdgeType) []byte {
	return []byte(prefixRevEdge + toID + keySep + fromID + keySep + string(edgeType))
}

// writeRetry builds the backoff schedule for a single best-effort write:
// three quick attempts, then give up and let the caller record the skip.
func writeRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(b, 2)
}

// UpsertNode writes or overwrites a node. The write is best-effort: a
// storage failure is logged and reported in the WriteResult, never raised,
// so transient storage errors degrade data completeness instead of aborting
// the caller's ingestion run.
func (s *Store) UpsertNode(ctx context.Context, id string, nodeType NodeType, data map[string]any) WriteResult {
	node := Node{
		ID:        id,
		Type:      nodeType,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(node)
	if err != nil {
		s.logger.Error("encode node failed", "nodeId", id, "error", err)
		return writeSkipped(err)
	}

	err = backoff.Retry(func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(prefixNode+id), payload)
		})
	}, writeRetry())
	if err != nil {
		s.logger.Error("upsert node failed", "nodeId", id, "error", err)
		return writeSkipped(err)
	}
	return writeOK()
}

// UpsertEdge writes or overwrites the edge (fromID, toID, edgeType), storing
// both the forward-traversal record and its reverse-index twin. Same
// best-effort semantics as UpsertNode.
func (s *Store) UpsertEdge(ctx context.Context, fromID, toID string, edgeType EdgeType, properties map[string]any) WriteResult {
	if properties == nil {
		properties = map[string]any{}
	}
	edge := Edge{
		FromID:     fromID,
		ToID:       toID,
		Type:       edgeType,
		Properties: properties,
		UpdatedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(edge)
	if err != nil {
		s.logger.Error("encode edge failed", "fromId", fromID, "toId", toID, "error", err)
		return writeSkipped(err)
	}

	err = backoff.Retry(func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(forwardEdgeKey(fromID, edgeType, toID), payload); err != nil {
				return err
			}
			return txn.Set(reverseEdgeKey(toID, fromID, edgeType), payload)
		})
	}, writeRetry())
	if err != nil {
		s.logger.Error("upsert edge failed", "fromId", fromID, "toId", toID, "edgeType", edgeType, "error", err)
		return writeSkipped(err)
	}
	return writeOK()
}

// GetNode retrieves a node by id, returning ErrNodeNotFound when absent.
func (s *Store) GetNode(ctx context.Context, id string) (*Node, error) {
	var node Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixNode + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return &node, nil
}

// OutgoingEdges returns all edges out of fromID. When edgeType is non-empty
// the scan is restricted with a longer key prefix, so only matching records
// are read.
func (s *Store) OutgoingEdges(ctx context.Context, fromID string, edgeType EdgeType) ([]Edge, error) {
	prefix := prefixEdge + fromID + keySep
	if edgeType != "" {
		prefix += string(edgeType) + keySep
	}
	return s.scanEdges(prefix, "")
}

// IncomingEdges returns all edges into toID via the reverse index. The
// reverse index is not partitioned by edge type: a type filter always fetches
// the node's full incoming set first and filters client-side. That read
// amplification on high-fan-in nodes is a known property of the index layout.
func (s *Store) IncomingEdges(ctx context.Context, toID string, edgeType EdgeType) ([]Edge, error) {
	return s.scanEdges(prefixRevEdge+toID+keySep, edgeType)
}

// scanEdges iterates all edge records under prefix, optionally dropping
// edges whose type differs from filterType.
func (s *Store) scanEdges(prefix string, filterType EdgeType) ([]Edge, error) {
	var edges []Edge
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var edge Edge
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &edge)
			})
			if err != nil {
				return err
			}
			if filterType != "" && edge.Type != filterType {
				continue
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan edges %q: %w", strings.TrimSuffix(prefix, keySep), err)
	}
	return edges, nil
}

// PutJSON stores an arbitrary JSON record in an auxiliary keyspace. Used by
// the repository registry and agent session persistence, which share this
// store rather than opening a second database.
func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}
	return nil
}

// GetJSON loads a JSON record, returning ErrKeyNotFound when absent.
func (s *Store) GetJSON(ctx context.Context, key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return err
}

// DeleteKey removes a record from an auxiliary keyspace.
func (s *Store) DeleteKey(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// ScanJSON invokes fn for every record under prefix, decoding each value
// into a fresh map. Iteration stops on the first error from fn.
func (s *Store) ScanJSON(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
