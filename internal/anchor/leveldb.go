package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// genesisHash anchors the chain; the first entry links to this constant.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// LevelDBLedger is an embedded hash-chained ledger on top of LevelDB. Each
// entry links to the previous one by hash, and the entry hash doubles as the
// transaction reference handed back to callers.
type LevelDBLedger struct {
	db *leveldb.DB
}

type chainEntry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Proof     Proof     `json:"proof"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Key layout: fp:<fingerprint> -> seq, seq:<8 byte BE> -> entry JSON,
// tip -> seq of the newest entry.
var tipKey = []byte("tip")

// Open opens (or creates) a ledger at path.
func Open(path string) (*LevelDBLedger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &LevelDBLedger{db: db}, nil
}

// OpenMem opens a ledger backed by in-memory storage, for tests and
// ephemeral deployments.
func OpenMem() (*LevelDBLedger, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory ledger: %w", err)
	}
	return &LevelDBLedger{db: db}, nil
}

// Close releases the underlying database.
func (l *LevelDBLedger) Close() error { return l.db.Close() }

// Write implements Ledger. The returned TxRef is "0x" plus the entry hash.
func (l *LevelDBLedger) Write(_ context.Context, p Proof) (Proof, error) {
	prevHash, prevSeq, err := l.tip()
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	entry := chainEntry{
		Seq:       prevSeq + 1,
		Timestamp: time.Now().UTC(),
		Proof:     p,
		PrevHash:  prevHash,
	}
	entry.Proof.Timestamp = entry.Timestamp
	entry.Hash = hashChainEntry(&entry)
	entry.Proof.TxRef = "0x" + entry.Hash

	raw, err := json.Marshal(&entry)
	if err != nil {
		return Proof{}, fmt.Errorf("marshal ledger entry: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put(seqKey(entry.Seq), raw)
	batch.Put(fpKey(p.Fingerprint), seqKey(entry.Seq))
	batch.Put(tipKey, seqKey(entry.Seq))
	if err := l.db.Write(batch, nil); err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return entry.Proof, nil
}

// Read implements Ledger.
func (l *LevelDBLedger) Read(_ context.Context, fingerprint string) (Proof, error) {
	seqRef, err := l.db.Get(fpKey(fingerprint), nil)
	if err == leveldb.ErrNotFound {
		return Proof{}, ErrNotFound
	}
	if err != nil {
		return Proof{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	entry, err := l.entryAt(seqRef)
	if err != nil {
		return Proof{}, err
	}
	return entry.Proof, nil
}

// Ping implements Ledger.
func (l *LevelDBLedger) Ping(_ context.Context) error {
	if _, _, err := l.tip(); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// Verify walks the whole chain and checks every link and entry hash.
func (l *LevelDBLedger) Verify(_ context.Context) error {
	_, tipSeq, err := l.tip()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	prevHash := genesisHash
	for seq := uint64(1); seq <= tipSeq; seq++ {
		entry, err := l.entryAt(seqKey(seq))
		if err != nil {
			return err
		}
		if entry.PrevHash != prevHash {
			return fmt.Errorf("chain broken at seq %d", seq)
		}
		if hashChainEntry(entry) != entry.Hash {
			return fmt.Errorf("entry %d has invalid hash", seq)
		}
		prevHash = entry.Hash
	}
	return nil
}

// Len returns the number of entries in the chain.
func (l *LevelDBLedger) Len(_ context.Context) (uint64, error) {
	_, seq, err := l.tip()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return seq, nil
}

func (l *LevelDBLedger) tip() (hash string, seq uint64, err error) {
	seqRef, err := l.db.Get(tipKey, nil)
	if err == leveldb.ErrNotFound {
		return genesisHash, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	entry, err := l.entryAt(seqRef)
	if err != nil {
		return "", 0, err
	}
	return entry.Hash, entry.Seq, nil
}

func (l *LevelDBLedger) entryAt(seqRef []byte) (*chainEntry, error) {
	raw, err := l.db.Get(seqRef, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	var entry chainEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode ledger entry: %w", err)
	}
	return &entry, nil
}

func hashChainEntry(e *chainEntry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%d|%s",
		e.Seq, e.Timestamp.Format(time.RFC3339Nano),
		e.Proof.Fingerprint, e.Proof.PartyHashA, e.Proof.PartyHashB,
		e.Proof.Sequence, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 4+8)
	copy(key, "seq:")
	binary.BigEndian.PutUint64(key[4:], seq)
	return key
}

func fpKey(fp string) []byte { return []byte("fp:" + fp) }
