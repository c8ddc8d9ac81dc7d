package anchor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLevelDBLedgerWriteRead(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer ledger.Close()

	stored, err := ledger.Write(ctx, Proof{
		Fingerprint: "fp-one",
		PartyHashA:  "0xaaa",
		PartyHashB:  "0xbbb",
		Sequence:    7,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(stored.TxRef, "0x") || len(stored.TxRef) != 66 {
		t.Errorf("TxRef = %q, want 0x-prefixed 32-byte hash", stored.TxRef)
	}
	if stored.Timestamp.IsZero() {
		t.Error("Write did not stamp the proof")
	}

	got, err := ledger.Read(ctx, "fp-one")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TxRef != stored.TxRef || got.PartyHashA != "0xaaa" || got.Sequence != 7 {
		t.Errorf("Read returned %+v", got)
	}

	if _, err := ledger.Read(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read(missing) error = %v, want ErrNotFound", err)
	}
	if err := ledger.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestLevelDBLedgerChain(t *testing.T) {
	ctx := context.Background()
	ledger, err := OpenMem()
	if err != nil {
		t.Fatalf("OpenMem: %v", err)
	}
	defer ledger.Close()

	var refs []string
	for _, fp := range []string{"a", "b", "c"} {
		p, err := ledger.Write(ctx, Proof{Fingerprint: fp})
		if err != nil {
			t.Fatalf("Write(%s): %v", fp, err)
		}
		refs = append(refs, p.TxRef)
	}
	for i, ref := range refs {
		for j := i + 1; j < len(refs); j++ {
			if ref == refs[j] {
				t.Errorf("entries %d and %d share TxRef %s", i, j, ref)
			}
		}
	}
	if err := ledger.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}
	n, err := ledger.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 3 {
		t.Errorf("Len = %d, want 3", n)
	}
}

func TestHashIdentifier(t *testing.T) {
	// Keccak-256 of the empty string.
	const want = "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := HashIdentifier(""); got != want {
		t.Errorf("HashIdentifier(\"\") = %s, want %s", got, want)
	}
	a, b := HashIdentifier("patient-1"), HashIdentifier("patient-2")
	if a == b {
		t.Error("distinct identifiers hashed identically")
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 66 {
		t.Errorf("HashIdentifier output %q not a 0x-prefixed 32-byte digest", a)
	}
}
