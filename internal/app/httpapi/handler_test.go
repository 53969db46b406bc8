package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/SilverCare-Net/care_layer/internal/app"
	"github.com/SilverCare-Net/care_layer/internal/middleware"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	application, err := app.New(app.Stores{}, app.Options{
		JWTSecret:    "handler-test-secret",
		AdminUserIDs: []string{"sysop"},
	}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	handler, err := NewHandler(application, Options{})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}

	authed := middleware.NewAuthMiddleware(application.Issuer, nil, []string{
		"/api/auth/register",
		"/api/auth/login",
		"/api/auth/token/refresh",
		"/healthz",
		"/metrics",
	})
	srv := httptest.NewServer(authed.Handler(handler))
	t.Cleanup(srv.Close)
	return srv
}

type testEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (int, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env testEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

func unmarshalData(t *testing.T, env testEnvelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func registerUser(t *testing.T, srv *httptest.Server, username, phone string, groups []string) string {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]interface{}{
		"username": username,
		"password": "secret123",
		"phone":    phone,
		"groups":   groups,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, message %s", username, status, env.Message)
	}
	var user struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &user)
	return user.ID
}

func loginUser(t *testing.T, srv *httptest.Server, username string) (access, refresh string) {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"username": username,
		"password": "secret123",
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d, message %s", username, status, env.Message)
	}
	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	unmarshalData(t, env, &pair)
	return pair.Access, pair.Refresh
}

func TestGuardianshipFlow(t *testing.T) {
	srv := newTestServer(t)

	guardianUserID := registerUser(t, srv, "alice", "13800000001", []string{"guardian"})
	registerUser(t, srv, "bob", "13900000002", []string{"elder"})
	token, _ := loginUser(t, srv, "alice")

	// Guardian profile via the self endpoint.
	status, env := doJSON(t, http.MethodGet, srv.URL+"/api/user/profile", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get profile: status %d", status)
	}
	var guardianProfile struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &guardianProfile)

	// Ward profile via phone search, the binding flow on the client.
	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/user/guardianship?phone=139", token, nil)
	if status != http.StatusOK {
		t.Fatalf("phone search: status %d", status)
	}
	var found []struct {
		ID    string `json:"id"`
		Phone string `json:"phone"`
	}
	unmarshalData(t, env, &found)
	if len(found) != 1 || found[0].Phone != "13900000002" {
		t.Fatalf("phone search results = %+v", found)
	}
	wardProfileID := found[0].ID

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/user/guardianship", token, map[string]string{
		"guardian_id":  guardianProfile.ID,
		"ward_id":      wardProfileID,
		"relationship": "子女",
	})
	if status != http.StatusCreated {
		t.Fatalf("create edge: status %d, message %s", status, env.Message)
	}
	var edge struct {
		ID           string `json:"id"`
		Relationship string `json:"relationship"`
		WardName     string `json:"ward_name"`
	}
	unmarshalData(t, env, &edge)
	if edge.Relationship != "子女" {
		t.Fatalf("relationship = %q", edge.Relationship)
	}
	if edge.WardName != "bob" {
		t.Fatalf("ward name = %q", edge.WardName)
	}

	// The same ordered pair again is rejected as validation, not conflict.
	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/user/guardianship", token, map[string]string{
		"guardian_id":  guardianProfile.ID,
		"ward_id":      wardProfileID,
		"relationship": "子女",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate edge: status %d", status)
	}
	if env.Error != "validation_error" {
		t.Fatalf("duplicate edge error code = %q", env.Error)
	}

	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/user/guardianship/user/"+guardianUserID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("list by guardian: status %d", status)
	}
	var edges []struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &edges)
	if len(edges) != 1 || edges[0].ID != edge.ID {
		t.Fatalf("guardian edges = %+v", edges)
	}

	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/user/guardianship/ward/"+wardProfileID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("list by ward: status %d", status)
	}
	unmarshalData(t, env, &edges)
	if len(edges) != 1 {
		t.Fatalf("ward edges = %+v", edges)
	}

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/user/guardianship/"+edge.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete edge: status %d", status)
	}
	status, env = doJSON(t, http.MethodDelete, srv.URL+"/api/user/guardianship/"+edge.ID, token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("second delete: status %d", status)
	}
	if env.Error != "not_found" {
		t.Fatalf("second delete error code = %q", env.Error)
	}

	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/user/guardianship/user/"+guardianUserID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("list after delete: status %d", status)
	}
	unmarshalData(t, env, &edges)
	if len(edges) != 0 {
		t.Fatalf("edges after delete = %+v", edges)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	status, env := doJSON(t, http.MethodGet, srv.URL+"/api/user/profile", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous profile: status %d", status)
	}
	if env.Error != "unauthorized" {
		t.Fatalf("error code = %q", env.Error)
	}

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("healthz: status %d", status)
	}
}

func TestTokenRefreshRotation(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "carol", "13700000003", nil)
	_, refresh := loginUser(t, srv, "carol")

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/auth/token/refresh", "", map[string]string{
		"refresh": refresh,
	})
	if status != http.StatusOK {
		t.Fatalf("refresh: status %d, message %s", status, env.Message)
	}
	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	unmarshalData(t, env, &pair)
	if pair.Access == "" || pair.Refresh == refresh {
		t.Fatalf("rotation did not issue a fresh pair")
	}

	// The old refresh token was revoked by rotation.
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/auth/token/refresh", "", map[string]string{
		"refresh": refresh,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: status %d", status)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	srv := newTestServer(t)

	userID := registerUser(t, srv, "dave", "13600000004", nil)
	token, _ := loginUser(t, srv, "dave")

	status, env := doJSON(t, http.MethodGet, srv.URL+"/api/admin/audit", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin audit: status %d", status)
	}
	if env.Error != "permission_denied" {
		t.Fatalf("error code = %q", env.Error)
	}

	status, _ = doJSON(t, http.MethodGet, srv.URL+fmt.Sprintf("/api/admin/users/%s", userID), token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("non-admin user lookup: status %d", status)
	}
}

func TestRegisterRejectsPrivilegedGroups(t *testing.T) {
	srv := newTestServer(t)

	for i, group := range []string{"admin", "caregiver"} {
		status, env := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]interface{}{
			"username": "mallory",
			"password": "secret123",
			"phone":    fmt.Sprintf("1320000000%d", i),
			"groups":   []string{group},
		})
		if status != http.StatusBadRequest {
			t.Fatalf("self-assigned %s group: status %d", group, status)
		}
		if env.Error != "validation_error" {
			t.Fatalf("self-assigned %s group error code = %q", group, env.Error)
		}
	}

	// The rejected attempts left nothing behind; the username is still free.
	registerUser(t, srv, "mallory", "13200000009", nil)
	token, _ := loginUser(t, srv, "mallory")
	status, _ := doJSON(t, http.MethodGet, srv.URL+"/api/admin/audit", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("fresh registration reached admin surface: status %d", status)
	}
}

func TestServiceRequestVisibility(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "elder1", "13500000005", []string{"elder"})
	workerID := registerUser(t, srv, "worker", "13400000006", nil)

	// The caregiver group is handed out by an admin, not self-assigned.
	registerUser(t, srv, "sysop", "13300000007", nil)
	adminToken, _ := loginUser(t, srv, "sysop")
	if status, env := doJSON(t, http.MethodPost, srv.URL+"/api/admin/users/"+workerID+"/groups", adminToken, map[string]interface{}{
		"groups": []string{"caregiver"},
	}); status != http.StatusOK {
		t.Fatalf("grant caregiver group: status %d, message %s", status, env.Message)
	}

	elderToken, _ := loginUser(t, srv, "elder1")
	workerToken, _ := loginUser(t, srv, "worker")

	status, env := doJSON(t, http.MethodPost, srv.URL+"/api/service/", elderToken, map[string]interface{}{
		"type":         "FOOD",
		"service_time": "2031-01-02T10:00:00Z",
		"address":      "幸福路1号",
	})
	if status != http.StatusCreated {
		t.Fatalf("create request: status %d, message %s", status, env.Message)
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	unmarshalData(t, env, &created)
	if created.Status != "PENDING" {
		t.Fatalf("new request status = %q", created.Status)
	}

	// Caregivers see every request and can take it over.
	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/service/", workerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("caregiver list: status %d", status)
	}
	var list []struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("caregiver list = %+v", list)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/service/"+created.ID+"/update", workerToken, map[string]string{
		"status": "IN_PROGRESS",
	})
	if status != http.StatusOK {
		t.Fatalf("update request: status %d, message %s", status, env.Message)
	}
	var updated struct {
		Status string `json:"status"`
	}
	unmarshalData(t, env, &updated)
	if updated.Status != "IN_PROGRESS" {
		t.Fatalf("updated status = %q", updated.Status)
	}
}
