// Package store wires a vecset.Index to a SQLite-backed member table and
// graph snapshot, giving external callers stable string IDs and durable
// persistence across restarts.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/liliang-cn/vecset/internal/encoding"
	"github.com/liliang-cn/vecset/pkg/vecset"
)

// Member is one externally-addressable vector set entry.
type Member struct {
	ID     string
	Vector []float32
	Value  any
}

// Store persists a vecset.Index to a SQLite database: a members table
// holding each inserted vector and its attribute, and a snapshots table
// holding the most recent binary graph dump so Open can skip rebuilding
// the graph node-by-node when the prior shutdown was clean.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	idx    *vecset.Index
	params vecset.Params
	path   string
	logger vecset.Logger

	extToNode map[string]vecset.NodeID
	nodeToExt map[vecset.NodeID]string
	closed    bool
}

// Open creates or reopens a Store at path, applying params to the
// in-memory index. params.AttributeCodec is always overridden with
// encoding.AttributeEncoding so member values round-trip through Save and
// the snapshot table consistently.
func Open(ctx context.Context, path string, params vecset.Params) (*Store, error) {
	params.AttributeCodec = encoding.AttributeEncoding{}
	if params.Logger == nil {
		params.Logger = vecset.NopLogger()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:        db,
		params:    params,
		path:      path,
		logger:    params.Logger,
		extToNode: make(map[string]vecset.NodeID),
		nodeToExt: make(map[vecset.NodeID]string),
	}

	if err := s.loadOrRebuild(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		node_id INTEGER UNIQUE NOT NULL,
		vector BLOB NOT NULL,
		attribute BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_members_node_id ON members(node_id);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create tables: %w", err)
	}
	return nil
}

// loadOrRebuild tries the snapshot table first; if empty or corrupt, it
// rebuilds the graph from the members table by reinserting every row in
// node_id order, the same fallback the teacher's rebuildHNSWIndex performs
// when no snapshot is available.
func (s *Store) loadOrRebuild(ctx context.Context) error {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE id = 1").Scan(&data)
	if err == nil {
		idx, loadErr := vecset.Load(bytes.NewReader(data), s.params)
		if loadErr == nil {
			s.idx = idx
			return s.loadExternalIDs(ctx)
		}
		s.logger.Warn("snapshot load failed, rebuilding from members table", "error", loadErr)
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("store: read snapshot: %w", err)
	}

	idx, createErr := vecset.Create(s.params)
	if createErr != nil {
		return fmt.Errorf("store: create index: %w", createErr)
	}
	s.idx = idx
	return s.rebuildFromMembers(ctx)
}

func (s *Store) rebuildFromMembers(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, vector, attribute FROM members ORDER BY node_id ASC")
	if err != nil {
		return fmt.Errorf("store: query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var extID string
		var vecBlob, attrBlob []byte
		if err := rows.Scan(&extID, &vecBlob, &attrBlob); err != nil {
			return fmt.Errorf("store: scan member: %w", err)
		}
		vec, err := encoding.DecodeVector(vecBlob)
		if err != nil {
			return fmt.Errorf("store: decode member %s: %w", extID, err)
		}
		var codec encoding.AttributeEncoding
		value, err := codec.DecodeAttribute(attrBlob)
		if err != nil {
			return fmt.Errorf("store: decode attribute %s: %w", extID, err)
		}
		nodeID, err := s.idx.Insert(vec, value, 0)
		if err != nil {
			return fmt.Errorf("store: reinsert member %s: %w", extID, err)
		}
		s.extToNode[extID] = nodeID
		s.nodeToExt[nodeID] = extID
	}
	return rows.Err()
}

func (s *Store) loadExternalIDs(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, node_id FROM members")
	if err != nil {
		return fmt.Errorf("store: query member ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var extID string
		var nodeID uint32
		if err := rows.Scan(&extID, &nodeID); err != nil {
			return fmt.Errorf("store: scan member id: %w", err)
		}
		s.extToNode[extID] = vecset.NodeID(nodeID)
		s.nodeToExt[vecset.NodeID(nodeID)] = extID
	}
	return rows.Err()
}

// Insert adds vector/value as a new member. If externalID is empty, a
// UUID is generated.
func (s *Store) Insert(ctx context.Context, vector []float32, value any, externalID string) (string, error) {
	if err := encoding.ValidateVector(vector); err != nil {
		return "", fmt.Errorf("store: insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("store: insert: store is closed")
	}
	if externalID == "" {
		externalID = uuid.New().String()
	}
	if _, exists := s.extToNode[externalID]; exists {
		return "", fmt.Errorf("store: insert: member %q already exists", externalID)
	}

	nodeID, err := s.idx.Insert(vector, value, 0)
	if err != nil {
		return "", fmt.Errorf("store: insert: %w", err)
	}

	vecBlob, err := encoding.EncodeVector(vector)
	if err != nil {
		return "", fmt.Errorf("store: encode vector: %w", err)
	}
	var codec encoding.AttributeEncoding
	attrBlob, err := codec.EncodeAttribute(value)
	if err != nil {
		return "", fmt.Errorf("store: encode attribute: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO members (id, node_id, vector, attribute) VALUES (?, ?, ?, ?)",
		externalID, uint32(nodeID), vecBlob, attrBlob)
	if err != nil {
		return "", fmt.Errorf("store: persist member: %w", err)
	}

	s.extToNode[externalID] = nodeID
	s.nodeToExt[nodeID] = externalID
	return externalID, nil
}

// StoreResult is one scored search hit with the caller-facing external ID.
type StoreResult struct {
	ID    string
	Value any
	Dist  float32
}

// Search returns the k nearest members to query.
func (s *Store) Search(query []float32, k int) ([]StoreResult, error) {
	slot := s.idx.AcquireReadSlot()
	defer s.idx.ReleaseReadSlot(slot)

	results, err := s.idx.Search(query, k, slot, false)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return s.toStoreResults(results), nil
}

// SearchFiltered is Search restricted to members whose value satisfies
// filter. maxCandidates bounds the evaluation effort (0 means unlimited);
// see vecset.Index.SearchFiltered.
func (s *Store) SearchFiltered(query []float32, k int, filter func(value any) bool, maxCandidates int) ([]StoreResult, error) {
	slot := s.idx.AcquireReadSlot()
	defer s.idx.ReleaseReadSlot(slot)

	results, err := s.idx.SearchFiltered(query, k, slot, vecset.FilterFunc(filter), maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("store: search filtered: %w", err)
	}
	return s.toStoreResults(results), nil
}

func (s *Store) toStoreResults(results []vecset.Result) []StoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoreResult, 0, len(results))
	for _, r := range results {
		out = append(out, StoreResult{ID: s.nodeToExt[r.ID], Value: r.Value, Dist: r.Dist})
	}
	return out
}

// Delete removes a member by external ID.
func (s *Store) Delete(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodeID, ok := s.extToNode[externalID]
	if !ok {
		return fmt.Errorf("store: delete: unknown member %q", externalID)
	}
	if err := s.idx.Delete(nodeID); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", externalID); err != nil {
		return fmt.Errorf("store: delete member row: %w", err)
	}
	delete(s.extToNode, externalID)
	delete(s.nodeToExt, nodeID)
	return nil
}

// Vector returns an approximate reconstruction of the vector originally
// inserted under externalID, via vecset.Index.GetNodeVector.
func (s *Store) Vector(externalID string) ([]float32, error) {
	s.mu.Lock()
	nodeID, ok := s.extToNode[externalID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("store: vector: unknown member %q", externalID)
	}
	v, err := s.idx.GetNodeVector(nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: vector: %w", err)
	}
	return v, nil
}

// Validate runs the engine's independent graph-consistency check and
// reports reachability/reciprocity, for the "validate" CLI subcommand.
func (s *Store) Validate() (reachable int, reciprocal bool) {
	return s.idx.ValidateGraph()
}

// Info reports the index's current shape plus storage path.
type Info struct {
	Path  string
	Stats vecset.Stats
}

// Info returns a snapshot of the store's current state.
func (s *Store) Info() Info {
	return Info{Path: s.path, Stats: s.idx.Stats()}
}

// dumpRecord is one line of the JSON export produced by Dump.
type dumpRecord struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
	Value  any       `json:"value,omitempty"`
}

// Dump writes every live member as newline-delimited JSON to w, in the
// same JSONL spirit as the teacher's Dump feature.
func (s *Store) Dump(w io.Writer) error {
	c := s.idx.NewCursor()
	defer c.Close()

	enc := json.NewEncoder(w)
	for {
		res, ok := c.Next()
		if !ok {
			break
		}
		s.mu.Lock()
		extID := s.nodeToExt[res.ID]
		s.mu.Unlock()
		vec, err := s.idx.GetNodeVector(res.ID)
		if err != nil {
			return fmt.Errorf("store: dump: reconstruct vector for %s: %w", extID, err)
		}
		rec := dumpRecord{ID: extID, Vector: vec, Value: res.Value}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("store: dump: %w", err)
		}
	}
	return nil
}

// Close persists a fresh snapshot and releases the database handle.
// Index.Save takes the index's own read lock internally, so Close
// naturally waits for any in-flight Insert/Delete to finish before the
// snapshot is taken.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	buf := new(bytes.Buffer)
	if err := s.idx.Save(buf); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, data) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, created_at = CURRENT_TIMESTAMP",
		buf.Bytes())
	if err != nil {
		return fmt.Errorf("store: persist snapshot: %w", err)
	}

	return s.db.Close()
}
