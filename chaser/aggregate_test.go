package chaser

import "testing"

func record(kind ProductKind, major uint8, available int) LicenseRecord {
	return LicenseRecord{
		Kind:      kind,
		ProductID: kind.Tag(),
		Version:   Version{Major: major},
		Available: available,
	}
}

func TestAggregate_MatchesProductAndMajor(t *testing.T) {
	env := &ResponseEnvelope{Licenses: []LicenseRecord{
		record(ProductCore, 20, 3),
		record(ProductCore, 19, 99),
		record(ProductFx, 20, 7),
	}}
	if got := Aggregate(env, Criterion{Product: ProductCore, MajorVersion: 20}); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := Aggregate(env, Criterion{Product: ProductFx, MajorVersion: 20}); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := Aggregate(env, Criterion{Product: ProductEngine, MajorVersion: 20}); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(&ResponseEnvelope{}, Criterion{Product: ProductCore, MajorVersion: 20}); got != 0 {
		t.Errorf("expected 0 for empty list, got %d", got)
	}
	if got := Aggregate(nil, Criterion{Product: ProductCore, MajorVersion: 20}); got != 0 {
		t.Errorf("expected 0 for nil envelope, got %d", got)
	}
}

func TestAggregate_DuplicatesAndNegatives(t *testing.T) {
	// Split licenses across server shards are reported as separate records.
	env := &ResponseEnvelope{Licenses: []LicenseRecord{
		record(ProductCore, 20, 2),
		record(ProductCore, 20, 2),
		record(ProductCore, 20, -1),
	}}
	if got := Aggregate(env, Criterion{Product: ProductCore, MajorVersion: 20}); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	recs := []LicenseRecord{
		record(ProductCore, 20, 1),
		record(ProductFx, 20, 10),
		record(ProductCore, 20, 4),
		record(ProductCore, 21, 100),
	}
	reversed := make([]LicenseRecord, len(recs))
	for i, r := range recs {
		reversed[len(recs)-1-i] = r
	}
	c := Criterion{Product: ProductCore, MajorVersion: 20}
	a := Aggregate(&ResponseEnvelope{Licenses: recs}, c)
	b := Aggregate(&ResponseEnvelope{Licenses: reversed}, c)
	if a != 5 || b != 5 {
		t.Errorf("expected 5 in both orders, got %d and %d", a, b)
	}
}

func TestTotals(t *testing.T) {
	env := &ResponseEnvelope{Licenses: []LicenseRecord{
		record(ProductFx, 20, 1),
		record(ProductCore, 20, 3),
		record(ProductCore, 19, 2),
		record(ProductCore, 20, 1),
	}}
	env.Licenses[1].TotalTokens = 5
	env.Licenses[3].TotalTokens = 2

	got := Totals(env)
	want := []Total{
		{Criterion: Criterion{Product: ProductCore, MajorVersion: 19}, Available: 2, Records: 1},
		{Criterion: Criterion{Product: ProductCore, MajorVersion: 20}, Available: 4, TotalTokens: 7, Records: 2},
		{Criterion: Criterion{Product: ProductFx, MajorVersion: 20}, Available: 1, Records: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d totals, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("total %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
