// Package merge reconciles a local and a remote ledger Document.
//
// When both sides carry a parseable lastUpdated and the instants differ, the
// newer side is returned unchanged and the other is discarded in full. This is
// document-level last-writer-wins: an institution that exists only on the
// older side does not survive. Otherwise every collection is unioned by id,
// with the remote copy replacing the local one on collision.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"ledgersync/internal/models"
)

// Strategy records which path produced a Result.
type Strategy string

const (
	StrategyLocal  Strategy = "local"
	StrategyRemote Strategy = "remote"
	StrategyUnion  Strategy = "union"
)

// Conflict is an id present on both sides with different values. The remote
// value was kept.
type Conflict struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("conflict in %s: id %s (remote kept)", c.Collection, c.ID)
}

// Result is the outcome of Merge.
type Result struct {
	Document  *models.Document
	Conflicts []Conflict
	Strategy  Strategy
}

// Messages renders the conflicts as human-readable lines.
func (r Result) Messages() []string {
	out := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		out[i] = c.String()
	}
	return out
}

// Merge combines local and remote. Both must pass models.Validate. now stamps
// the union result; a wholesale result keeps the winner's own timestamp.
func Merge(local, remote *models.Document, now time.Time) (Result, error) {
	if err := models.Validate(local); err != nil {
		return Result{}, fmt.Errorf("local document: %w", err)
	}
	if err := models.Validate(remote); err != nil {
		return Result{}, fmt.Errorf("remote document: %w", err)
	}

	lt, lok := models.ParseTimestamp(local.LastUpdated)
	rt, rok := models.ParseTimestamp(remote.LastUpdated)
	if lok && rok {
		switch {
		case rt.After(lt):
			return Result{Document: remote.Clone(), Conflicts: []Conflict{}, Strategy: StrategyRemote}, nil
		case lt.After(rt):
			return Result{Document: local.Clone(), Conflicts: []Conflict{}, Strategy: StrategyLocal}, nil
		}
	}

	var conflicts []Conflict
	merged := &models.Document{
		Version:      max(local.Version, remote.Version),
		Institutions: union(models.CollectionInstitutions, local.Institutions, remote.Institutions, &conflicts),
		Accounts:     union(models.CollectionAccounts, local.Accounts, remote.Accounts, &conflicts),
		Assets:       union(models.CollectionAssets, local.Assets, remote.Assets, &conflicts),
		Transactions: union(models.CollectionTransactions, local.Transactions, remote.Transactions, &conflicts),
		FxRates:      union(models.CollectionFxRates, local.FxRates, remote.FxRates, &conflicts),
		Preferences:  local.Preferences,
	}
	if !remote.Preferences.IsZero() {
		merged.Preferences = remote.Preferences
	}
	merged.Touch(now)

	if conflicts == nil {
		conflicts = []Conflict{}
	}
	// Clone detaches tag slices shared with the inputs.
	return Result{Document: merged.Clone(), Conflicts: conflicts, Strategy: StrategyUnion}, nil
}

// union keeps local order, overlays remote values by id, and appends
// remote-only entities in remote order.
func union[E models.Entity](collection string, local, remote []E, conflicts *[]Conflict) []E {
	out := make([]E, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))
	for _, e := range local {
		if i, ok := index[e.EntityID()]; ok {
			out[i] = e
			continue
		}
		index[e.EntityID()] = len(out)
		out = append(out, e)
	}
	for _, e := range remote {
		i, ok := index[e.EntityID()]
		if !ok {
			index[e.EntityID()] = len(out)
			out = append(out, e)
			continue
		}
		if !sameValue(out[i], e) {
			*conflicts = append(*conflicts, Conflict{Collection: collection, ID: e.EntityID()})
		}
		out[i] = e
	}
	return out
}

// sameValue compares entities by their wire form so an empty and a nil tag
// list count as equal.
func sameValue[E any](a, b E) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
