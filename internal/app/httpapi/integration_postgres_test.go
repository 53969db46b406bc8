package httpapi

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/SilverCare-Net/care_layer/internal/app"
	"github.com/SilverCare-Net/care_layer/internal/app/storage/postgres"
	"github.com/SilverCare-Net/care_layer/internal/middleware"
	"github.com/SilverCare-Net/care_layer/internal/platform/migrations"
)

// TestAPIPostgres runs the register/bind flow against a real database.
// Set TEST_POSTGRES_DSN to enable.
func TestAPIPostgres(t *testing.T) {
	_ = godotenv.Load()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Identities:    store,
		Profiles:      store,
		Cards:         store,
		Schedules:     store,
		Guardianships: store,
		Requests:      store,
		Sessions:      store,
	}, app.Options{JWTSecret: "integration-secret"}, nil)
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
	})
	srv := httptest.NewServer(authed.Handler(handler))
	defer srv.Close()

	suffix := time.Now().UnixNano()
	guardian := fmt.Sprintf("pgguardian%d", suffix)
	ward := fmt.Sprintf("pgward%d", suffix)
	guardianPhone := fmt.Sprintf("1%010d", suffix%10000000000)
	wardPhone := fmt.Sprintf("2%010d", suffix%10000000000)

	registerUser(t, srv, guardian, guardianPhone, []string{"guardian"})
	registerUser(t, srv, ward, wardPhone, []string{"elder"})
	token, _ := loginUser(t, srv, guardian)

	status, env := doJSON(t, http.MethodGet, srv.URL+"/api/user/profile", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get profile: status %d", status)
	}
	var guardianProfile struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &guardianProfile)

	status, env = doJSON(t, http.MethodGet, srv.URL+"/api/user/guardianship?phone="+wardPhone, token, nil)
	if status != http.StatusOK {
		t.Fatalf("phone search: status %d", status)
	}
	var found []struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &found)
	if len(found) != 1 {
		t.Fatalf("phone search results = %+v", found)
	}

	status, env = doJSON(t, http.MethodPost, srv.URL+"/api/user/guardianship", token, map[string]string{
		"guardian_id":  guardianProfile.ID,
		"ward_id":      found[0].ID,
		"relationship": "子女",
	})
	if status != http.StatusCreated {
		t.Fatalf("create edge: status %d, message %s", status, env.Message)
	}
	var edge struct {
		ID string `json:"id"`
	}
	unmarshalData(t, env, &edge)

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/user/guardianship/"+edge.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete edge: status %d", status)
	}
}
