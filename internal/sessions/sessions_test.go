package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/labsite/internal/calculator"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func sampleState() calculator.State {
	return calculator.State{
		Source: "lump",
		Lines: []calculator.StateLine{
			{ItemID: "concrete-compression", Quantity: 2, UnitPrice: decimal.RequireFromString("1500.00")},
		},
	}
}

func TestMemoryStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	id := NewID()

	if _, err := store.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save error = %v", err)
	}
	if err := store.Save(ctx, id, sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Source != "lump" || len(got.Lines) != 1 || got.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected state: %+v", got)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after Delete error = %v", err)
	}
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, "s", sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, err := store.Load(ctx, "s"); err != nil {
		t.Fatalf("Load before expiry: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := store.Load(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after expiry error = %v", err)
	}
}

func TestStateJSONKeepsExactPrices(t *testing.T) {
	data, err := json.Marshal(sampleState())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var st calculator.State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !st.Lines[0].UnitPrice.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("price changed through JSON: %s", st.Lines[0].UnitPrice)
	}
}

func TestValidID(t *testing.T) {
	if !ValidID(NewID()) {
		t.Fatalf("NewID must produce a valid id")
	}
	for _, bad := range []string{"", "abc", "../../etc/passwd"} {
		if ValidID(bad) {
			t.Fatalf("ValidID(%q) = true", bad)
		}
	}
}

func TestBuildKey(t *testing.T) {
	if got := buildKey("abc"); got != "calc:abc" {
		t.Fatalf("buildKey = %q", got)
	}
}
