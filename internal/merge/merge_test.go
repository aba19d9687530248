package merge

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"ledgersync/internal/models"
)

var (
	t0  = "2024-10-01T10:00:00.000Z"
	t1  = "2024-10-01T12:00:00.000Z"
	now = time.Date(2024, 10, 2, 8, 0, 0, 0, time.UTC)
)

func baseDoc(lastUpdated string) *models.Document {
	return &models.Document{
		Version:      1,
		Institutions: []models.Institution{},
		Accounts:     []models.Account{},
		Assets:       []models.Asset{},
		Transactions: []models.Transaction{},
		FxRates:      []models.FxRate{},
		Preferences:  models.DefaultPreferences(),
		LastUpdated:  lastUpdated,
	}
}

func richDoc(lastUpdated string) *models.Document {
	d := baseDoc(lastUpdated)
	d.Version = 4
	d.Institutions = []models.Institution{{ID: "i1", Name: "Banco"}}
	d.Accounts = []models.Account{{ID: "a1", Name: "Main", Kind: models.AccountKindSavings, Currency: "COP", OpeningBalance: 100}}
	d.Assets = []models.Asset{{ID: "x1", Class: models.AssetClassCrypto, Currency: "BTC", Quantity: 0.1, AccountID: "a1"}}
	d.Transactions = []models.Transaction{{ID: "t1", Date: "2024-10-01", Kind: models.TransactionKindDeposit, Amount: models.Some(10.0), Tags: []string{"x"}}}
	d.FxRates = []models.FxRate{{ID: "f1", From: "USD", To: "COP", Rate: 4100}}
	return d
}

func TestMerge_Idempotent(t *testing.T) {
	for _, ts := range []string{t1, ""} {
		d := richDoc(ts)
		res, err := Merge(d, d.Clone(), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Conflicts) != 0 {
			t.Errorf("lastUpdated %q: conflicts = %v, want none", ts, res.Conflicts)
		}
		got := res.Document.Clone()
		got.LastUpdated = d.LastUpdated
		if !reflect.DeepEqual(got, d) {
			t.Errorf("lastUpdated %q: merge(d, d) != d\n got=%+v\nwant=%+v", ts, got, d)
		}
	}
}

func TestMerge_RecencyShortCircuit(t *testing.T) {
	t.Run("remote_newer", func(t *testing.T) {
		a := richDoc(t0)
		b := baseDoc(t1)
		b.Accounts = []models.Account{{ID: "a9", Name: "Other", Currency: "USD"}}

		res, err := Merge(a, b, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(res.Document, b) {
			t.Errorf("expected remote wholesale, got %+v", res.Document)
		}
		if len(res.Conflicts) != 0 || res.Strategy != StrategyRemote {
			t.Errorf("conflicts = %v, strategy = %q", res.Conflicts, res.Strategy)
		}
	})

	t.Run("local_newer", func(t *testing.T) {
		a := richDoc(t1)
		b := richDoc(t0)
		b.Institutions = append(b.Institutions, models.Institution{ID: "i2"})

		res, err := Merge(a, b, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(res.Document, a) || res.Strategy != StrategyLocal {
			t.Errorf("expected local wholesale, got %+v", res.Document)
		}
	})

	t.Run("result_is_detached", func(t *testing.T) {
		a := baseDoc(t0)
		b := richDoc(t1)
		res, _ := Merge(a, b, now)
		res.Document.Transactions[0].Tags[0] = "changed"
		if b.Transactions[0].Tags[0] != "x" {
			t.Error("result shares memory with input")
		}
	})
}

// A newer local document replaces the remote entirely, even though the remote
// holds an institution the local side never had.
func TestMerge_WholesaleDropsOlderOnlyEntities(t *testing.T) {
	local := baseDoc(t1)
	local.Accounts = []models.Account{{ID: "a1", Name: "Main", Currency: "COP", OpeningBalance: 100}}

	remote := baseDoc(t0)
	remote.Accounts = []models.Account{{ID: "a1", Name: "Main", Currency: "COP", OpeningBalance: 100}}
	remote.Institutions = []models.Institution{{ID: "i1"}}

	res, err := Merge(local, remote, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Document.Institutions) != 0 {
		t.Errorf("institution i1 should not survive, got %+v", res.Document.Institutions)
	}
	if !reflect.DeepEqual(res.Document, local) {
		t.Errorf("expected local wholesale, got %+v", res.Document)
	}
}

func TestMerge_UnionWithConflict(t *testing.T) {
	a := baseDoc(t1)
	a.Accounts = []models.Account{{ID: "a1", Name: "Local name", Currency: "COP"}}
	b := baseDoc(t1)
	b.Accounts = []models.Account{{ID: "a1", Name: "Remote name", Currency: "COP"}}

	res, err := Merge(a, b, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Strategy != StrategyUnion {
		t.Errorf("strategy = %q, want union", res.Strategy)
	}
	if len(res.Document.Accounts) != 1 || res.Document.Accounts[0].Name != "Remote name" {
		t.Errorf("accounts = %+v, want remote version", res.Document.Accounts)
	}
	want := []Conflict{{Collection: models.CollectionAccounts, ID: "a1"}}
	if !reflect.DeepEqual(res.Conflicts, want) {
		t.Errorf("conflicts = %v, want %v", res.Conflicts, want)
	}
	if msgs := res.Messages(); len(msgs) != 1 || msgs[0] != "conflict in cuentas: id a1 (remote kept)" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestMerge_UnionKeepsOneSidedEntities(t *testing.T) {
	a := baseDoc("")
	a.Institutions = []models.Institution{{ID: "i1"}}
	a.Assets = []models.Asset{{ID: "x1", AccountID: "a1"}}
	a.FxRates = []models.FxRate{{ID: "f1"}}

	b := baseDoc("not a date")
	b.Institutions = []models.Institution{{ID: "i2"}}
	b.Transactions = []models.Transaction{{ID: "t1"}}
	b.FxRates = []models.FxRate{{ID: "f2"}, {ID: "f1"}}

	res, err := Merge(a, b, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := res.Document

	ids := func(n int, id func(int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = id(i)
		}
		return out
	}
	if got := ids(len(d.Institutions), func(i int) string { return d.Institutions[i].ID }); !reflect.DeepEqual(got, []string{"i1", "i2"}) {
		t.Errorf("institutions = %v", got)
	}
	if len(d.Assets) != 1 || len(d.Transactions) != 1 {
		t.Errorf("assets = %v, transactions = %v", d.Assets, d.Transactions)
	}
	if got := ids(len(d.FxRates), func(i int) string { return d.FxRates[i].ID }); !reflect.DeepEqual(got, []string{"f1", "f2"}) {
		t.Errorf("fx = %v", got)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("identical f1 should not conflict: %v", res.Conflicts)
	}
}

func TestMerge_UnionMetadata(t *testing.T) {
	a := baseDoc(t1)
	a.Version = 7
	a.Preferences = models.Preferences{BaseCurrency: "USD", Timezone: "UTC"}
	b := baseDoc(t1)
	b.Version = 3

	res, err := Merge(a, b, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Document.Version != 7 {
		t.Errorf("version = %d, want 7", res.Document.Version)
	}
	if res.Document.LastUpdated != models.FormatTimestamp(now) {
		t.Errorf("lastUpdated = %q, want merge time", res.Document.LastUpdated)
	}
	if res.Document.Preferences != b.Preferences {
		t.Errorf("preferences = %+v, want remote", res.Document.Preferences)
	}
}

func TestMerge_RejectsInvalidDocuments(t *testing.T) {
	valid := baseDoc(t1)
	invalid := baseDoc(t1)
	invalid.Preferences = models.Preferences{}

	if _, err := Merge(invalid, valid, now); !errors.Is(err, models.ErrInvalidStructure) {
		t.Errorf("invalid local: err = %v", err)
	}
	if _, err := Merge(valid, nil, now); !errors.Is(err, models.ErrInvalidStructure) {
		t.Errorf("nil remote: err = %v", err)
	}
}
