package event

import (
	"testing"
	"time"
)

func TestEventHashDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	evt := Event{
		Seq:         1,
		Timestamp:   ts,
		Type:        TypeMint,
		PayloadJSON: []byte(`{"account":"alice","amount":100}`),
	}

	first, err := EventHash(evt)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	second, err := EventHash(evt)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic hash, got %s and %s", first, second)
	}
}

func TestEventHashChangesWithEveryField(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	base := Event{
		Seq:         1,
		Timestamp:   ts,
		Type:        TypeMint,
		PayloadJSON: []byte(`{"account":"alice","amount":100}`),
	}
	baseline, err := EventHash(base)
	if err != nil {
		t.Fatalf("event hash: %v", err)
	}

	variants := []Event{base, base, base, base}
	variants[0].Seq = 2
	variants[1].Timestamp = ts.Add(time.Millisecond)
	variants[2].Type = TypeBurn
	variants[3].PayloadJSON = []byte(`{"account":"alice","amount":101}`)

	for i, variant := range variants {
		hash, err := EventHash(variant)
		if err != nil {
			t.Fatalf("variant %d hash: %v", i, err)
		}
		if hash == baseline {
			t.Fatalf("variant %d produced the baseline hash", i)
		}
	}
}

func TestEventHashRequiresTimestamp(t *testing.T) {
	_, err := EventHash(Event{Seq: 1, Type: TypeMint, PayloadJSON: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected error when timestamp is missing")
	}
}

func TestChainHashRequiresEventHash(t *testing.T) {
	evt := Event{
		Seq:         4,
		Timestamp:   time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Type:        TypeTransfer,
		PayloadJSON: []byte(`{"from":"a","to":"b","amount":5}`),
	}
	if _, err := ChainHash(evt, "prev"); err == nil {
		t.Fatal("expected error when event hash is missing")
	}
}

func TestChainHashLinksToPredecessor(t *testing.T) {
	evt := Event{Hash: "eventhash"}
	first, err := ChainHash(evt, GenesisPrevHash)
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	second, err := ChainHash(evt, "otherprev")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if first == second {
		t.Fatal("expected chain hash to depend on the previous hash")
	}
}
