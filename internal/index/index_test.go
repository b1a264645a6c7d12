package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/apperr"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "dagflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(path, title, cs string) FlowRow {
	return FlowRow{Path: path, Title: title, Checksum: cs, UpdatedAt: time.Now()}
}

func usage(pairs ...any) []models.NodeUsage {
	var out []models.NodeUsage
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.NodeUsage{TypeID: pairs[i].(string), Count: pairs[i+1].(int)})
	}
	return out
}

// Two sources feeding a filter; the filter and sink sit inside a group.
const chainDoc = `{
  "metadata": {"title": "Receive Chain", "created": "2026-01-01T00:00:00Z", "version": "1.2"},
  "nodes": [
    {"id": "a", "type": "signal_source", "name": "A", "position": {"x": 0, "y": 0}, "parameters": []},
    {"id": "b", "type": "signal_source", "name": "B", "position": {"x": 0, "y": 100}, "parameters": []},
    {"id": "g", "type": "group", "name": "G", "isGroup": true, "position": {"x": 300, "y": 50}, "parameters": [],
     "inputPortCount": 1, "outputPortCount": 0,
     "internalNodes": [
       {"id": "f", "type": "filter", "name": "F", "position": {"x": 250, "y": 50}, "parameters": []},
       {"id": "s", "type": "sink", "name": "S", "position": {"x": 350, "y": 50}, "parameters": []}
     ],
     "internalConnections": [{"fromNode": "F", "fromId": "f", "fromPort": 0, "toNode": "S", "toId": "s", "toPort": 0}],
     "originalPositions": [{"nodeId": "f", "x": 250, "y": 50}, {"nodeId": "s", "x": 350, "y": 50}]}
  ],
  "connections": [
    {"from": "a", "fromPort": 0, "to": "g", "toPort": 0},
    {"from": "b", "fromPort": 0, "to": "g", "toPort": 0}
  ]
}`

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM flows`).Scan(&count); err != nil {
		t.Fatalf("flows table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM node_types`).Scan(&count); err != nil {
		t.Fatalf("node_types table missing: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	r := row("rx.flow.json", "Receiver", "abc123")
	r.Stats = models.FlowStats{Nodes: 3, Connections: 2, Groups: 1}
	if err := db.UpsertFlow(r, usage("filter", 2)); err != nil {
		t.Fatalf("UpsertFlow: %v", err)
	}
	cs, err := db.GetChecksum("rx.flow.json")
	if err != nil || cs != "abc123" {
		t.Errorf("checksum = %q, %v", cs, err)
	}
	got, err := db.GetFlow("rx.flow.json")
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if got.Title != "Receiver" || got.Stats != r.Stats {
		t.Errorf("row = %+v", got)
	}
}

func TestGetFlow_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetFlow("missing.flow.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	cs, err := db.GetChecksum("missing.flow.json")
	if err != nil || cs != "" {
		t.Errorf("checksum = %q, %v", cs, err)
	}
}

func TestUpsertReplacesUsage(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFlow(row("a.flow.json", "Old", "1"), usage("filter", 1, "fft", 1))
	_ = db.UpsertFlow(row("a.flow.json", "New", "2"), usage("sink", 1))

	if cs, _ := db.GetChecksum("a.flow.json"); cs != "2" {
		t.Errorf("checksum = %q, want 2", cs)
	}
	if paths, _ := db.FlowsUsingType("filter"); len(paths) != 0 {
		t.Errorf("stale usage kept: %v", paths)
	}
	if paths, _ := db.FlowsUsingType("sink"); len(paths) != 1 {
		t.Errorf("new usage missing: %v", paths)
	}
}

func TestDeleteFlow(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFlow(row("del.flow.json", "Del", "x"), usage("fft", 1))
	if err := db.DeleteFlow("del.flow.json"); err != nil {
		t.Fatalf("DeleteFlow: %v", err)
	}
	if cs, _ := db.GetChecksum("del.flow.json"); cs != "" {
		t.Errorf("deleted flow still has checksum %q", cs)
	}
	if paths, _ := db.FlowsUsingType("fft"); len(paths) != 0 {
		t.Errorf("usage left behind: %v", paths)
	}
}

func TestListFlows_SortAndPage(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"beta", "Alpha", "gamma"} {
		r := row(title+".flow.json", title, "cs")
		r.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		r.Stats.Nodes = i
		_ = db.UpsertFlow(r, nil)
	}

	rows, total, err := db.ListFlows(2, 0, "title")
	if err != nil {
		t.Fatalf("ListFlows: %v", err)
	}
	if total != 3 || len(rows) != 2 {
		t.Fatalf("total=%d len=%d", total, len(rows))
	}
	if rows[0].Title != "Alpha" || rows[1].Title != "beta" {
		t.Errorf("title order = %s, %s", rows[0].Title, rows[1].Title)
	}

	rows, _, _ = db.ListFlows(10, 0, "updated")
	if rows[0].Title != "gamma" {
		t.Errorf("updated order starts with %s", rows[0].Title)
	}
	if !rows[0].UpdatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("updated_at = %v", rows[0].UpdatedAt)
	}

	rows, _, _ = db.ListFlows(10, 2, "")
	if len(rows) != 1 || rows[0].Path != "gamma.flow.json" {
		t.Errorf("offset page = %+v", rows)
	}

	if _, _, err := db.ListFlows(10, 0, "bogus"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown sort err = %v", err)
	}
}

func TestSearch_TitleBeforeNodeType(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFlow(row("b.flow.json", "Uses filter", "1"), usage("sink", 1))
	_ = db.UpsertFlow(row("a.flow.json", "Plain", "2"), usage("filter", 2, "lowpass_filter", 1))
	_ = db.UpsertFlow(row("c.flow.json", "Other", "3"), usage("sink", 1))

	results, err := db.Search("filter", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].Path != "b.flow.json" || results[0].Match != "title" {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].Path != "a.flow.json" || results[1].Match != "filter" {
		t.Errorf("second = %+v", results[1])
	}
}

func TestTypeUsage(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertFlow(row("a.flow.json", "A", "1"), usage("filter", 2, "sink", 1))
	_ = db.UpsertFlow(row("b.flow.json", "B", "2"), usage("filter", 1))

	got, err := db.TypeUsage()
	if err != nil {
		t.Fatalf("TypeUsage: %v", err)
	}
	want := usage("filter", 3, "sink", 1)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("usage = %+v, want %+v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]byte(chainDoc))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Title != "Receive Chain" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Stats != (models.FlowStats{Nodes: 3, Connections: 2, Groups: 1}) {
		t.Errorf("stats = %+v", s.Stats)
	}
	want := usage("filter", 1, "signal_source", 2, "sink", 1)
	if len(s.Usage) != len(want) {
		t.Fatalf("usage = %+v", s.Usage)
	}
	for i := range want {
		if s.Usage[i] != want[i] {
			t.Errorf("usage[%d] = %+v, want %+v", i, s.Usage[i], want[i])
		}
	}

	if _, err := Summarize([]byte(`{"connections": []}`)); err == nil {
		t.Error("expected error for document without nodes")
	}
}
