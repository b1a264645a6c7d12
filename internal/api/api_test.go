package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/catalog"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/flowservice"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/metrics"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/testutil"
)

// testEnv sets up a temp workspace, SQLite DB, service, and router for testing.
// An empty authToken disables auth.
func testEnv(t *testing.T, authToken string) (*flowservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithWorkspace(t, RouterConfig{AuthEnabled: authToken != "", Token: authToken})
	return svc, router
}

func testEnvWithWorkspace(t *testing.T, cfg RouterConfig) (*flowservice.Service, http.Handler, string) {
	t.Helper()
	dir, store := testutil.TestWorkspace(t)
	svc := flowservice.New(store, testutil.TestDB(t), catalog.NewLibrary())
	t.Cleanup(svc.Close)
	return svc, NewRouter(svc, cfg), dir
}

func do(t *testing.T, router http.Handler, method, target string, body []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createFlow(t *testing.T, router http.Handler, path string) FlowDetail {
	t.Helper()
	body, _ := json.Marshal(CreateFlowRequest{Path: path, Document: testutil.ChainDocument(t, "Chain")})
	w := do(t, router, http.MethodPost, "/flows", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var d FlowDetail
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCreateAndGetFlow(t *testing.T) {
	_, router := testEnv(t, "")
	created := createFlow(t, router, "rx/chain.flow.json")
	if created.Stats.Nodes != 3 || created.Stats.Connections != 2 {
		t.Errorf("stats = %+v", created.Stats)
	}

	w := do(t, router, http.MethodGet, "/flows/rx/chain.flow.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var flow FlowDetail
	_ = json.Unmarshal(w.Body.Bytes(), &flow)
	if flow.Path != "rx/chain.flow.json" {
		t.Errorf("path = %q", flow.Path)
	}
	if flow.Title != "Chain" {
		t.Errorf("title = %q, want Chain", flow.Title)
	}
	if got := w.Header().Get("ETag"); got != strconv.Quote(flow.Checksum) {
		t.Errorf("etag = %q, checksum = %q", got, flow.Checksum)
	}

	// Encoded slashes resolve to the same flow.
	w = do(t, router, http.MethodGet, "/flows/rx%2Fchain.flow.json", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded get status = %d", w.Code)
	}
}

func TestCreateEmptyFlow(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/flows", []byte(`{"path":"blank.flow.json"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var d FlowDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Title != "blank" || d.Stats.Nodes != 0 {
		t.Errorf("detail = %+v", d)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "dup.flow.json")

	body, _ := json.Marshal(CreateFlowRequest{Path: "dup.flow.json"})
	w := do(t, router, http.MethodPost, "/flows", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	_, router := testEnv(t, "")
	cases := map[string]string{
		"no path":      `{}`,
		"not json":     `{`,
		"not a flow":   `{"path":"notes.md"}`,
		"bad document": `{"path":"x.flow.json","document":{"connections":[]}}`,
	}
	for name, body := range cases {
		w := do(t, router, http.MethodPost, "/flows", []byte(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400 (%s)", name, w.Code, w.Body.String())
		}
	}
}

func TestSaveWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createFlow(t, router, "lock.flow.json")

	doc := []byte(`{"metadata":{"title":"Renamed"},"nodes":[],"connections":[]}`)
	w := do(t, router, http.MethodPut, "/flows/lock.flow.json", doc, "If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale save = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/flows/lock.flow.json", doc, "If-Match", strconv.Quote(created.Checksum))
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, body = %s", w.Code, w.Body.String())
	}
	var d FlowDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Title != "Renamed" || d.Checksum == created.Checksum {
		t.Errorf("detail = %+v", d)
	}

	w = do(t, router, http.MethodPut, "/flows/missing.flow.json", doc)
	if w.Code != http.StatusNotFound {
		t.Errorf("save missing = %d, want 404", w.Code)
	}
}

func TestDeleteFlow(t *testing.T) {
	_, router, dir := testEnvWithWorkspace(t, RouterConfig{})
	createFlow(t, router, "gone.flow.json")

	w := do(t, router, http.MethodDelete, "/flows/gone.flow.json", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.flow.json")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	w = do(t, router, http.MethodDelete, "/flows/gone.flow.json", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestMoveFlow(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "a.flow.json")
	createFlow(t, router, "b.flow.json")

	w := do(t, router, http.MethodPost, "/flows/a.flow.json/move", []byte(`{"to":"b.flow.json"}`))
	if w.Code != http.StatusConflict {
		t.Errorf("move onto existing = %d, want 409", w.Code)
	}
	w = do(t, router, http.MethodPost, "/flows/a.flow.json/move", []byte(`{"to":"archive/a.flow.json"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/flows/a.flow.json", nil); w.Code != http.StatusNotFound {
		t.Errorf("old path = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/flows/archive/a.flow.json", nil); w.Code != http.StatusOK {
		t.Errorf("new path = %d", w.Code)
	}
}

func TestListFlows(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "b.flow.json")
	createFlow(t, router, "a.flow.json")

	w := do(t, router, http.MethodGet, "/flows?sort=path", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp FlowListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Flows) != 2 || resp.Flows[0].Path != "a.flow.json" {
		t.Errorf("resp = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/flows?sort=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{"/flows", "/node-types/usage"} {
		w := do(t, router, http.MethodGet, target, nil)
		if strings.Contains(w.Body.String(), "null") {
			t.Errorf("%s body = %s", target, w.Body.String())
		}
	}
}

func TestSessionEditAndCommit(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "edit.flow.json")

	w := do(t, router, http.MethodPost, "/flows/edit.flow.json/session", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}

	op := []byte(`{"op":"add_node","type":"fft","position":{"x":600,"y":0}}`)
	w = do(t, router, http.MethodPost, "/flows/edit.flow.json/ops", op)
	if w.Code != http.StatusOK {
		t.Fatalf("apply = %d, body = %s", w.Code, w.Body.String())
	}
	var res flowservice.OpResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Applied || len(res.Created) != 1 || !res.State.Dirty || len(res.State.Nodes) != 4 {
		t.Fatalf("result = %+v", res)
	}

	w = do(t, router, http.MethodGet, "/flows/edit.flow.json/session", nil)
	var st flowservice.SessionState
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if len(st.History) != 1 || !st.CanUndo {
		t.Errorf("state = %+v", st)
	}

	w = do(t, router, http.MethodPost, "/flows/edit.flow.json/commit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("commit = %d, body = %s", w.Code, w.Body.String())
	}
	var d FlowDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Stats.Nodes != 4 {
		t.Errorf("committed stats = %+v", d.Stats)
	}

	w = do(t, router, http.MethodDelete, "/flows/edit.flow.json/session", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("close = %d", w.Code)
	}
}

func TestApplyOpErrors(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "ops.flow.json")

	cases := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"op":"teleport"}`, http.StatusBadRequest},
		{`{"op":"move","node":"nope","position":{"x":1,"y":1}}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := do(t, router, http.MethodPost, "/flows/ops.flow.json/ops", []byte(tc.body))
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (%s)", tc.body, w.Code, tc.want, w.Body.String())
		}
	}

	w := do(t, router, http.MethodPost, "/flows/missing.flow.json/ops", []byte(`{"op":"select_all"}`))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing flow = %d, want 404", w.Code)
	}
}

func TestUnknownAction(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "x.flow.json")
	if w := do(t, router, http.MethodGet, "/flows/x.flow.json/bogus", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/flows/x.flow.json", nil); w.Code != http.StatusNotFound {
		t.Errorf("post without action = %d, want 404", w.Code)
	}
}

func TestValidateFlow(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "v.flow.json")
	w := do(t, router, http.MethodGet, "/flows/v.flow.json/validate", nil)
	var resp ValidateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || !resp.Valid {
		t.Errorf("validate = %d %+v", w.Code, resp)
	}
}

func TestTemplatesAndUsage(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "chain.flow.json")

	w := do(t, router, http.MethodGet, "/templates", nil)
	var list struct {
		Templates []catalog.Template `json:"templates"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Templates) != len(catalog.BuiltIns()) {
		t.Errorf("templates = %d", len(list.Templates))
	}

	w = do(t, router, http.MethodGet, "/templates/filter", nil)
	var one struct {
		Template catalog.Template `json:"template"`
		UsedBy   []string         `json:"used_by"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &one)
	if one.Template.TypeID != "filter" || len(one.UsedBy) != 1 || one.UsedBy[0] != "chain.flow.json" {
		t.Errorf("template = %+v", one)
	}

	if w := do(t, router, http.MethodGet, "/templates/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing template = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/node-types/usage", nil)
	if !strings.Contains(w.Body.String(), `"type_id":"filter"`) {
		t.Errorf("usage = %s", w.Body.String())
	}
}

func TestSearch(t *testing.T) {
	_, router := testEnv(t, "")
	createFlow(t, router, "chain.flow.json")

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty query = %d, want 400", w.Code)
	}
	w := do(t, router, http.MethodGet, "/search?q=sink", nil)
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "chain.flow.json" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestListOps(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/ops", nil)
	if !strings.Contains(w.Body.String(), `"group"`) {
		t.Errorf("ops = %s", w.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	if w := do(t, router, http.MethodGet, "/flows", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/flows", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/flows", nil, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("good token = %d, want 200", w.Code)
	}
}

func TestMetricsOutsideAuth(t *testing.T) {
	c := metrics.NewCollector("apitest")
	_, router, _ := testEnvWithWorkspace(t, RouterConfig{AuthEnabled: true, Token: "secret", Metrics: c})

	do(t, router, http.MethodGet, "/flows", nil, "Authorization", "Bearer secret")
	w := do(t, router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="/flows"`) {
		t.Errorf("metrics body missing route label:\n%s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	_, router, _ := testEnvWithWorkspace(t, RouterConfig{CORSOrigins: []string{"http://localhost:5173"}})
	w := do(t, router, http.MethodOptions, "/flows", nil,
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", "PUT")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}
