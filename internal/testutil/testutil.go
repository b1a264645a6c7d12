// Package testutil provides shared test helpers for workspaces, databases
// and flow documents.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowdoc"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/geometry"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/index"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkspace creates a temporary workspace directory with a storage.Provider.
func TestWorkspace(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// ChainDocument encodes source -> filter -> sink laid out left to right,
// with node ids "src", "flt" and "snk".
func ChainDocument(t *testing.T, title string) []byte {
	t.Helper()
	src := graph.NewNode("signal_source", "Source", geometry.Point{X: 0, Y: 0})
	flt := graph.NewNode("filter", "Filter", geometry.Point{X: 200, Y: 0})
	snk := graph.NewNode("sink", "Sink", geometry.Point{X: 400, Y: 0})
	src.ID, flt.ID, snk.ID = "src", "flt", "snk"
	src.SetInputPortCount(0)
	snk.SetOutputPortCount(0)
	conns := []*graph.Connection{
		graph.Connect(src, 0, flt, 0, geometry.Bezier),
		graph.Connect(flt, 0, snk, 0, geometry.Bezier),
	}
	data, err := flowdoc.Marshal(flowdoc.Encode(title, []*graph.Node{src, flt, snk}, conns, time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	return data
}
