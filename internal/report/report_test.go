package report

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/martinsuchenak/fmcsweep/internal/model"
	"github.com/martinsuchenak/fmcsweep/internal/reclaim"
	"github.com/martinsuchenak/fmcsweep/internal/restore"
	"github.com/martinsuchenak/fmcsweep/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestTable_TruncatesWideCells(t *testing.T) {
	out := Table("T", []Column{{"Name", 10}}, [][]string{{"a-very-long-object-name"}})
	assert.Contains(t, out, "a-ver...")
	assert.NotContains(t, out, "a-very-long-object-name")
}

func TestTable_TruncatesByRune(t *testing.T) {
	out := Table("T", []Column{{"Name", 10}}, [][]string{{"zürich-überlandstrasse"}})
	assert.Contains(t, out, "züric...")
	assert.True(t, utf8.ValidString(out))
}

func TestCleanup(t *testing.T) {
	out := Cleanup(reclaim.Report{
		Results: []reclaim.Result{
			{Category: model.NetworkGroups, Total: 10, Before: 3, After: 1, Deleted: 5, Passes: 3,
				Stuck: []model.Object{{Name: "stubborn"}}, Errors: []model.ItemError{{Name: "stubborn"}},
				Backups: []string{"/b/FMC-network-group-object-backup-2026-03-14.csv"}},
			{Category: model.Hosts, Total: 4, Before: 2, After: 2, Declined: true},
			{Category: model.Ranges, Total: 3, Before: 2, After: 1, Deleted: 1, Passes: 1,
				Skipped: []model.Object{{Name: "r-lab"}}},
		},
		Stopped: true,
	})
	assert.Contains(t, out, "Cleanup summary")
	assert.Contains(t, out, "groups")
	assert.Contains(t, out, "hosts")
	assert.Contains(t, out, "declined")
	assert.Contains(t, out, "group stubborn is reported unused but could not be deleted")
	assert.Contains(t, out, "range r-lab was kept because its backup failed")
	assert.Contains(t, out, "stopped before every category")
}

func TestRestore(t *testing.T) {
	out := Restore(restore.Report{Results: []restore.Result{
		{Category: model.Hosts, Attempted: 2, Created: 2, Source: "hosts.csv"},
		{Category: model.Ranges, Skipped: true, Reason: "missing"},
		{Category: model.Networks, Skipped: true, Source: "nets.csv", Reason: "row 1 has 2 columns, want 4"},
		{Category: model.NetworkGroups, Attempted: 1, Created: 1, Unresolved: []restore.MemberMiss{{Group: "G", Member: "X"}}},
	}})
	assert.Contains(t, out, "hosts.csv")
	assert.Contains(t, out, "skipped, missing")
	assert.Contains(t, out, "network backup nets.csv not restored: row 1 has 2 columns, want 4")
	assert.Contains(t, out, "group G lost member X")
}

func TestInventory(t *testing.T) {
	out := Inventory([]Count{{Category: model.Networks, Total: 12, Unused: 4}}, false)
	assert.Contains(t, out, "networks")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "-")
	assert.NotContains(t, out, " 4 ")
}

func TestHistory(t *testing.T) {
	assert.Contains(t, History(nil), "No runs recorded")

	out := History([]storage.Run{{ID: "0190a1b2", Kind: "cleanup", StartedAt: time.Now(), Status: "completed", Succeeded: 7, Operator: "admin"}})
	assert.Contains(t, out, "0190a1b2")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "admin")
}

func TestOutcomes(t *testing.T) {
	out := Outcomes([]model.Outcome{
		{Category: model.Hosts, Action: model.ActionDelete, Name: "h1", Succeeded: true},
		{Category: model.NetworkGroups, Action: model.ActionDelete, Name: "g1", Pass: 2, Message: "in use"},
	})
	assert.Contains(t, out, "h1")
	assert.Contains(t, out, "in use")
}
