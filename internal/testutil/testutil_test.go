package testutil_test

import (
	"testing"

	"ledgersync/internal/errors"
	"ledgersync/internal/models"
	"ledgersync/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var count int64
	for _, table := range []string{"documents", "settings", "sync_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	a := testutil.SetupTestDB(t)
	b := testutil.SetupTestDB(t)

	if err := a.Create(&models.Setting{KeyedRecord: models.KeyedRecord{Key: "k"}, Value: "v"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var count int64
	b.Model(&models.Setting{}).Count(&count)
	if count != 0 {
		t.Errorf("databases share state: %d rows", count)
	}
}

func TestFixtures(t *testing.T) {
	doc := testutil.SampleDocument()
	if err := models.Validate(doc); err != nil {
		t.Fatalf("sample document should validate: %v", err)
	}
	if len(doc.Accounts) != 2 || len(doc.Assets) != 1 {
		t.Errorf("unexpected sample shape: %+v", doc)
	}
	if doc.Assets[0].AccountID != doc.Accounts[1].ID {
		t.Error("asset should be held by the USD account")
	}

	a, b := testutil.NewInstitution(), testutil.NewInstitution()
	if a.ID == b.ID {
		t.Error("fixtures should get unique ids")
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrAccountNotFound, "ACCOUNT_NOT_FOUND")
	testutil.AssertAppError(t, errors.Wrap(errors.ErrRemote, nil), "REMOTE_ERROR")
	testutil.AssertNoError(t, nil)
}
