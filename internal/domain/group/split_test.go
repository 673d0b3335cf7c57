package group

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func member(role Role, hours, weight string) Participant {
	return Participant{
		UserID: uuid.New(),
		Role:   role,
		Hours:  decimal.RequireFromString(hours),
		Weight: decimal.RequireFromString(weight),
	}
}

func shareTotal(shares []Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func TestCalculateSplitEqual(t *testing.T) {
	p1 := member(RoleProvider, "0", "0")
	p2 := member(RoleProvider, "0", "0")
	r1 := member(RoleReceiver, "0", "0")
	r2 := member(RoleReceiver, "0", "0")

	shares, err := CalculateSplit(SplitEqual, decimal.RequireFromString("12"), []Participant{p1, p2, r1, r2})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) != 4 {
		t.Fatalf("got %d shares, want 4", len(shares))
	}
	for _, s := range shares {
		if !s.Amount.Equal(decimal.RequireFromString("3")) {
			t.Errorf("share %s->%s = %s, want 3", s.PayerID, s.PayeeID, s.Amount)
		}
		if s.PayerID == s.PayeeID {
			t.Error("payer and payee must differ")
		}
	}
	if got := shareTotal(shares); !got.Equal(decimal.RequireFromString("12")) {
		t.Errorf("total = %s, want 12", got)
	}
}

func TestCalculateSplitWeighted(t *testing.T) {
	heavy := member(RoleProvider, "0", "3")
	light := member(RoleProvider, "0", "1")
	payer := member(RoleReceiver, "0", "1")

	shares, err := CalculateSplit(SplitWeighted, decimal.RequireFromString("8"), []Participant{heavy, light, payer})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}

	byPayee := map[uuid.UUID]decimal.Decimal{}
	for _, s := range shares {
		byPayee[s.PayeeID] = s.Amount
	}
	if !byPayee[heavy.UserID].Equal(decimal.RequireFromString("6")) {
		t.Errorf("heavy provider = %s, want 6", byPayee[heavy.UserID])
	}
	if !byPayee[light.UserID].Equal(decimal.RequireFromString("2")) {
		t.Errorf("light provider = %s, want 2", byPayee[light.UserID])
	}
}

func TestCalculateSplitWeightedZeroWeights(t *testing.T) {
	p := member(RoleProvider, "0", "0")
	r := member(RoleReceiver, "0", "1")
	_, err := CalculateSplit(SplitWeighted, decimal.RequireFromString("5"), []Participant{p, r})
	if !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("err = %v, want ErrZeroWeights", err)
	}
}

func TestCalculateSplitCustom(t *testing.T) {
	p1 := member(RoleProvider, "4", "0")
	p2 := member(RoleProvider, "6", "0")
	r1 := member(RoleReceiver, "2", "0")
	r2 := member(RoleReceiver, "8", "0")

	shares, err := CalculateSplit(SplitCustom, decimal.RequireFromString("10"), []Participant{p1, p2, r1, r2})
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	// Receivers fund proportionally to their declared hours: 20% and 80%.
	want := map[[2]uuid.UUID]string{
		{r1.UserID, p1.UserID}: "0.8",
		{r2.UserID, p1.UserID}: "3.2",
		{r1.UserID, p2.UserID}: "1.2",
		{r2.UserID, p2.UserID}: "4.8",
	}
	if len(shares) != len(want) {
		t.Fatalf("got %d shares, want %d", len(shares), len(want))
	}
	for _, s := range shares {
		expected, ok := want[[2]uuid.UUID{s.PayerID, s.PayeeID}]
		if !ok {
			t.Errorf("unexpected share %s -> %s", s.PayerID, s.PayeeID)
			continue
		}
		if !s.Amount.Equal(decimal.RequireFromString(expected)) {
			t.Errorf("share = %s, want %s", s.Amount, expected)
		}
	}
	if got := shareTotal(shares); !got.Equal(decimal.RequireFromString("10")) {
		t.Errorf("total = %s, want 10", got)
	}
}

func TestCalculateSplitCustomSumMismatch(t *testing.T) {
	p := member(RoleProvider, "4", "0")
	r := member(RoleReceiver, "0", "0")
	_, err := CalculateSplit(SplitCustom, decimal.RequireFromString("10"), []Participant{p, r})
	if !errors.Is(err, ErrCustomSplitSum) {
		t.Fatalf("err = %v, want ErrCustomSplitSum", err)
	}
}

func TestCalculateSplitCustomWithinTolerance(t *testing.T) {
	p1 := member(RoleProvider, "3.33", "0")
	p2 := member(RoleProvider, "6.66", "0")
	r := member(RoleReceiver, "0", "0")

	// 9.99 vs 10.00 is inside the rounding tolerance.
	if _, err := CalculateSplit(SplitCustom, decimal.RequireFromString("10"), []Participant{p1, p2, r}); err != nil {
		t.Fatalf("split: %v", err)
	}
}

func TestCalculateSplitRequiresBothSides(t *testing.T) {
	onlyProviders := []Participant{member(RoleProvider, "0", "1")}
	if _, err := CalculateSplit(SplitEqual, decimal.RequireFromString("5"), onlyProviders); !errors.Is(err, ErrNoReceivers) {
		t.Errorf("err = %v, want ErrNoReceivers", err)
	}
	onlyReceivers := []Participant{member(RoleReceiver, "0", "1")}
	if _, err := CalculateSplit(SplitEqual, decimal.RequireFromString("5"), onlyReceivers); !errors.Is(err, ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
}

func TestCalculateSplitDeterministicOrder(t *testing.T) {
	participants := []Participant{
		member(RoleProvider, "0", "0"),
		member(RoleProvider, "0", "0"),
		member(RoleReceiver, "0", "0"),
		member(RoleReceiver, "0", "0"),
	}
	total := decimal.RequireFromString("8")

	first, err := CalculateSplit(SplitEqual, total, participants)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	// Shuffled input must yield the same ordered output.
	shuffled := []Participant{participants[3], participants[1], participants[2], participants[0]}
	second, err := CalculateSplit(SplitEqual, total, shuffled)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("share counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PayerID != second[i].PayerID || first[i].PayeeID != second[i].PayeeID || !first[i].Amount.Equal(second[i].Amount) {
			t.Errorf("share %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
