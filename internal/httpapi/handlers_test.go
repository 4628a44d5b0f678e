package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/auth"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/blob"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/stream"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

// well-known CIDv0 used as a document pointer in tests
const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type fakeDocs struct {
	data map[string][]byte
}

func (f *fakeDocs) Fetch(ctx context.Context, hash string) ([]byte, error) {
	payload, ok := f.data[hash]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return payload, nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	notices   *notice.InMemory
	accessSt  *access.InMemory
	authStore *auth.InMemoryStore
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("NFTSERVE_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	notices := notice.NewInMemory()
	accessSt := access.NewInMemory()
	authStore := auth.NewInMemoryStore()

	api := New(Config{
		Ready:   ReadyProbe{},
		Version: "test",
		Notices: notices,
		Access:  access.NewService(notices, accessSt),
		Auth:    authStore,
		Stream:  stream.New(),
		Documents: &fakeDocs{data: map[string][]byte{
			testCID: []byte("encrypted-document"),
		}},
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:   srv.URL,
		client:    srv.Client(),
		t:         t,
		notices:   notices,
		accessSt:  accessSt,
		authStore: authStore,
	}
}

func testAddr(t *testing.T, fill byte) string {
	t.Helper()
	payload := make([]byte, 21)
	payload[0] = 0x41
	for i := 1; i < len(payload); i++ {
		payload[i] = fill
	}
	addr, err := tron.EncodeAddress(payload)
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}
	return addr
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) adminToken() string {
	c.t.Helper()
	hash, err := auth.HashPassword("pw")
	if err != nil {
		c.t.Fatalf("hash password: %v", err)
	}
	err = c.authStore.Create(context.Background(), &auth.AdminUser{
		Email:        "ops@example.com",
		PasswordHash: hash,
	})
	if err != nil && err != auth.ErrAlreadyExists {
		c.t.Fatalf("seed admin: %v", err)
	}

	resp := c.post("/v1/auth/token", map[string]any{
		"email":    "ops@example.com",
		"password": "pw",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.Token
}

func (c *apiClient) authed(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthAndInfo(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "nftserve-api" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = c.get("/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/info", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("info status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestNoticeLifecycle(t *testing.T) {
	c := newTestAPI(t)
	token := c.adminToken()
	wallet := testAddr(t, 0x01)

	// creation requires a token
	resp := c.post("/v1/notices", map[string]any{
		"case_number": "34-1234",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create status %d", resp.StatusCode)
	}
	resp.Body.Close()

	create := map[string]any{
		"case_number":       "34-1234",
		"alert_token_id":    "12",
		"document_token_id": "13",
		"recipients":        []string{wallet},
		"ipfs_hash":         testCID,
		"chain":             "TRON",
	}
	resp = c.post("/v1/notices", create, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	created := decode[notice.Record](t, resp)
	if created.ID == "" || created.Status() != notice.StatusServed {
		t.Fatalf("created record wrong: %+v", created)
	}

	// upsert: same payload again keeps one record
	resp = c.post("/v1/notices", create, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("repeat create status %d", resp.StatusCode)
	}
	again := decode[notice.Record](t, resp)
	if again.ID != created.ID {
		t.Fatal("upsert created a duplicate record")
	}

	// public read
	resp = c.get("/v1/notices/34-1234", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// view then accept
	resp = c.post("/v1/notices/34-1234/views", map[string]any{
		"viewer_address": wallet,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("view status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/notices/34-1234/accept", map[string]any{
		"tx_id": "7f1d9a",
	}, c.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d", resp.StatusCode)
	}
	accepted := decode[notice.Record](t, resp)
	if accepted.Status() != notice.StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("acceptance not recorded: %+v", accepted)
	}

	// idempotent accept keeps the original timestamp
	resp = c.post("/v1/notices/34-1234/accept", nil, c.authed(token))
	repeat := decode[notice.Record](t, resp)
	if !repeat.AcceptedAt.Equal(*accepted.AcceptedAt) {
		t.Fatal("second accept moved accepted_at")
	}

	// view history
	resp = c.get("/v1/notices/34-1234/views", nil, nil)
	history := decode[viewHistoryResponse](t, resp)
	if len(history.Items) != 1 {
		t.Fatalf("view history wrong: %+v", history.Items)
	}

	// wallet listing, case-folded
	resp = c.get("/v1/wallets/"+wallet+"/notices", nil, nil)
	listing := decode[map[string][]noticeSummary](t, resp)
	if len(listing["items"]) != 1 {
		t.Fatalf("wallet listing wrong: %v", listing)
	}
}

func TestAcceptRequiresServingRole(t *testing.T) {
	c := newTestAPI(t)
	token := c.adminToken()
	wallet := testAddr(t, 0x01)

	resp := c.post("/v1/notices", map[string]any{
		"case_number":    "34-8888",
		"alert_token_id": "20",
		"recipients":     []string{wallet},
	}, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// acceptance is terminal; an anonymous caller must not flip it
	resp = c.post("/v1/notices/34-8888/accept", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated accept status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	rec, err := c.notices.FindByCase(context.Background(), "34-8888")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.Accepted || rec.AcceptedAt != nil {
		t.Fatalf("acceptance forged: %+v", rec)
	}
}

func TestPublicReadsOmitRestrictedFields(t *testing.T) {
	c := newTestAPI(t)
	token := c.adminToken()
	wallet := testAddr(t, 0x01)

	resp := c.post("/v1/notices", map[string]any{
		"case_number":    "34-9999",
		"alert_token_id": "30",
		"recipients":     []string{wallet},
		"ipfs_hash":      testCID,
		"encryption_key": "super-secret-key",
	}, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/notices/34-9999", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	for _, field := range []string{"encryption_key", "ipfs_hash", "recipients"} {
		if _, ok := body[field]; ok {
			t.Fatalf("field %q exposed on public read: %v", field, body)
		}
	}
	if body["case_number"] != "34-9999" || body["status"] != "served" {
		t.Fatalf("public projection incomplete: %v", body)
	}

	// the wallet listing is public too and gets the same projection
	resp = c.get("/v1/wallets/"+wallet+"/notices", nil, nil)
	walletBody := decode[map[string][]map[string]any](t, resp)
	for _, item := range walletBody["items"] {
		if _, ok := item["encryption_key"]; ok {
			t.Fatalf("encryption key exposed in wallet listing: %v", item)
		}
	}

	// privileged callers still see the full record
	resp = c.get("/v1/notices/34-9999", nil, c.authed(token))
	full := decode[notice.Record](t, resp)
	if full.EncryptionKey != "super-secret-key" || full.IPFSHash != testCID {
		t.Fatalf("privileged read incomplete: %+v", full)
	}
}

func TestAccessCheckAndDocumentFetch(t *testing.T) {
	c := newTestAPI(t)
	token := c.adminToken()
	wallet := testAddr(t, 0x01)
	stranger := testAddr(t, 0x02)

	resp := c.post("/v1/notices", map[string]any{
		"case_number":    "34-1234",
		"alert_token_id": "12",
		"recipients":     []string{wallet},
		"ipfs_hash":      testCID,
		"encryption_key": "k-1234",
	}, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// recipient is granted and receives the token, pointer and key
	resp = c.post("/v1/access/check", map[string]any{
		"wallet_address": wallet,
		"alert_token_id": "12",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status %d", resp.StatusCode)
	}
	granted := decode[access.Decision](t, resp)
	if !granted.HasAccess || granted.AccessToken == "" {
		t.Fatalf("recipient not granted: %+v", granted)
	}
	if granted.EncryptionKey != "k-1234" || granted.IPFSHash != testCID {
		t.Fatalf("granted decision missing document material: %+v", granted)
	}

	// stranger is denied but still sees public metadata, nothing more
	resp = c.post("/v1/access/check", map[string]any{
		"wallet_address": stranger,
		"alert_token_id": "12",
	}, nil)
	denied := decode[access.Decision](t, resp)
	if denied.HasAccess || denied.DenialReason != access.DenyNotRecipient {
		t.Fatalf("stranger decision wrong: %+v", denied)
	}
	if denied.Public.CaseNumber != "34-1234" {
		t.Fatalf("public metadata missing on denial: %+v", denied.Public)
	}
	if denied.EncryptionKey != "" || denied.IPFSHash != "" || denied.AccessToken != "" {
		t.Fatalf("denied decision leaks document material: %+v", denied)
	}

	// every check appended an attempt row
	if got := len(c.accessSt.Attempts()); got != 2 {
		t.Fatalf("attempt rows = %d, want 2", got)
	}

	// the token unlocks the document bytes
	resp = c.get("/v1/documents/"+testCID, url.Values{
		"access_token": {granted.AccessToken},
		"wallet":       {wallet},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document status %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(data) != "encrypted-document" {
		t.Fatalf("document bytes wrong: %q", data)
	}

	// missing credentials are rejected
	resp = c.get("/v1/documents/"+testCID, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("credential-less fetch status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// a stranger cannot use someone else's token
	resp = c.get("/v1/documents/"+testCID, url.Values{
		"access_token": {granted.AccessToken},
		"wallet":       {stranger},
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stolen token fetch status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAccessCheckRequiresTokenID(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/access/check", map[string]any{
		"wallet_address": testAddr(t, 0x01),
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestServerRegistry(t *testing.T) {
	c := newTestAPI(t)
	wallet := testAddr(t, 0x05)

	resp := c.post("/v1/servers", map[string]any{
		"wallet_address": wallet,
		"name":           "County Sheriff",
		"agency":         "County",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	registered := decode[auth.ProcessServer](t, resp)
	if registered.Status != auth.ServerPending {
		t.Fatalf("status = %q, want pending", registered.Status)
	}

	// duplicate registration conflicts
	resp = c.post("/v1/servers", map[string]any{
		"wallet_address": wallet,
		"name":           "Duplicate",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/servers/"+wallet, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// status change needs an admin token
	resp = c.do(http.MethodPut, "/v1/servers/"+wallet+"/status", map[string]any{
		"status": "approved",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status change: %d", resp.StatusCode)
	}
	resp.Body.Close()

	token := c.adminToken()
	resp = c.do(http.MethodPut, "/v1/servers/"+wallet+"/status", map[string]any{
		"status": "approved",
	}, c.authed(token))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status change: %d", resp.StatusCode)
	}
	resp.Body.Close()

	ps, err := c.authStore.FindByWallet(context.Background(), wallet)
	if err != nil || ps.Status != auth.ServerApproved {
		t.Fatalf("status not updated: %+v, %v", ps, err)
	}
}

func TestAuthTokenRejectsBadCredentials(t *testing.T) {
	c := newTestAPI(t)
	c.adminToken() // seeds the account

	resp := c.post("/v1/auth/token", map[string]any{
		"email":    "ops@example.com",
		"password": "wrong",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/auth/token", map[string]any{
		"email":    "nobody@example.com",
		"password": "pw",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown account status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminListingsRequireRole(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/notices", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status %d", resp.StatusCode)
	}
	resp.Body.Close()

	token := c.adminToken()
	resp = c.get("/v1/notices", nil, c.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/servers", nil, c.authed(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("server list status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBackfillEndpoint(t *testing.T) {
	c := newTestAPI(t)
	token := c.adminToken()
	wallet := testAddr(t, 0x01)

	resp := c.post("/v1/notices", map[string]any{
		"case_number":    "34-1234",
		"alert_token_id": "12",
		"recipients":     []string{wallet},
	}, c.authed(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/notices/34-1234/backfill", map[string]any{
		"field": "document_token_id",
		"value": "13",
	}, c.authed(token))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("backfill status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// second write to the same field conflicts
	resp = c.post("/v1/notices/34-1234/backfill", map[string]any{
		"field": "document_token_id",
		"value": "99",
	}, c.authed(token))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repeat backfill status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownRouteReturns404(t *testing.T) {
	c := newTestAPI(t)

	// without a token the middleware rejects unknown protected paths
	resp := c.get("/v1/unknown", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/unknown", nil, c.authed(c.adminToken()))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestResponsesCarryRequestID(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil, nil)
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
}
