// Package httpapi exposes the care services over REST. Responses use a
// {code, message, data} envelope; the auth middleware runs outside this
// package and places the caller identity in the request context.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/SilverCare-Net/care_layer/internal/app"
	"github.com/SilverCare-Net/care_layer/internal/app/auth"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/identity"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/profile"
	"github.com/SilverCare-Net/care_layer/internal/app/domain/servicereq"
	"github.com/SilverCare-Net/care_layer/internal/app/metrics"
	"github.com/SilverCare-Net/care_layer/internal/app/services/accounts"
	"github.com/SilverCare-Net/care_layer/internal/app/services/profiles"
	"github.com/SilverCare-Net/care_layer/internal/app/services/requests"
	"github.com/SilverCare-Net/care_layer/internal/errors"
	"github.com/SilverCare-Net/care_layer/internal/httputil"
	"github.com/SilverCare-Net/care_layer/internal/logging"
	"github.com/SilverCare-Net/care_layer/internal/middleware"
	"github.com/SilverCare-Net/care_layer/internal/platform/blob"
)

const maxUploadBytes = 8 << 20

// Options carries the handler's non-service dependencies.
type Options struct {
	Media           *blob.Store
	AuditMaxEntries int
	AuditFile       string
	Logger          *logging.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	media *blob.Store
	audit *auditLog
	log   *logging.Logger
}

// NewHandler returns a router exposing the REST API.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, err
	}
	h := &handler{
		app:   application,
		media: opts.Media,
		audit: newAuditLog(opts.AuditMaxEntries, sink),
		log:   log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if h.media != nil {
		r.PathPrefix(h.media.URLPrefix() + "/").Handler(h.media.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/token/refresh", h.refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	user := api.PathPrefix("/user").Subrouter()
	user.HandleFunc("/profile", h.getProfile).Methods(http.MethodGet)
	user.HandleFunc("/profile/update", h.audited(h.updateProfile)).Methods(http.MethodPost)
	user.HandleFunc("/upload", h.audited(h.upload)).Methods(http.MethodPost)

	user.HandleFunc("/guardianship", h.searchGuardianship).Methods(http.MethodGet)
	user.HandleFunc("/guardianship", h.audited(h.createGuardianship)).Methods(http.MethodPost)
	user.HandleFunc("/guardianship/user/{userId}", h.listGuardianEdges).Methods(http.MethodGet)
	user.HandleFunc("/guardianship/ward/{wardId}", h.listWardEdges).Methods(http.MethodGet)
	user.HandleFunc("/guardianship/{id}", h.getGuardianship).Methods(http.MethodGet)
	user.HandleFunc("/guardianship/{id}", h.audited(h.deleteGuardianship)).Methods(http.MethodDelete)

	user.HandleFunc("/user/{userId}/card-package", h.wallet).Methods(http.MethodGet)
	user.HandleFunc("/cards", h.listCards).Methods(http.MethodGet)
	user.HandleFunc("/cards", h.audited(h.addCard)).Methods(http.MethodPost)
	user.HandleFunc("/cards/{id}", h.audited(h.updateCard)).Methods(http.MethodPut)
	user.HandleFunc("/cards/{id}", h.audited(h.deleteCard)).Methods(http.MethodDelete)

	user.HandleFunc("/health-schedules", h.listSchedules).Methods(http.MethodGet)
	user.HandleFunc("/health-schedules", h.audited(h.createSchedule)).Methods(http.MethodPost)
	user.HandleFunc("/health-schedules/{id}", h.audited(h.updateSchedule)).Methods(http.MethodPut)
	user.HandleFunc("/health-schedules/{id}", h.audited(h.deleteSchedule)).Methods(http.MethodDelete)

	api.HandleFunc("/service", h.listRequests).Methods(http.MethodGet)
	api.HandleFunc("/service", h.audited(h.createRequest)).Methods(http.MethodPost)
	service := api.PathPrefix("/service").Subrouter()
	service.HandleFunc("/", h.listRequests).Methods(http.MethodGet)
	service.HandleFunc("/", h.audited(h.createRequest)).Methods(http.MethodPost)
	service.HandleFunc("/{id}", h.getRequest).Methods(http.MethodGet)
	service.HandleFunc("/{id}/update", h.audited(h.updateRequest)).Methods(http.MethodPost)
	service.HandleFunc("/{id}/delete", h.audited(h.deleteRequest)).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireGroups(identity.GroupAdmin))
	admin.HandleFunc("/audit", h.auditTrail).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/groups", h.audited(h.setUserGroups)).Methods(http.MethodPost)

	return r, nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Email    string   `json:"email"`
		Nickname string   `json:"nickname"`
		Phone    string   `json:"phone"`
		Groups   []string `json:"groups"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	user, err := h.app.Accounts.Register(r.Context(), accounts.RegisterInput{
		Username: payload.Username,
		Password: payload.Password,
		Email:    payload.Email,
		Nickname: payload.Nickname,
		Phone:    payload.Phone,
		Groups:   payload.Groups,
	})
	metrics.RecordAuthAttempt("register", err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, newUserView(user))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	pair, err := h.app.Accounts.Login(r.Context(), payload.Username, payload.Password)
	metrics.RecordAuthAttempt("login", err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, pair)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	pair, err := h.app.Accounts.Refresh(r.Context(), payload.Refresh)
	metrics.RecordAuthAttempt("refresh", err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, pair)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}
	if err := h.app.Accounts.Logout(r.Context(), payload.Refresh); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	p, err := h.app.Profiles.GetForUser(r.Context(), caller, r.URL.Query().Get("user_id"))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newProfileView(p))
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID        string  `json:"user_id"`
		Nickname      *string `json:"nickname"`
		Phone         *string `json:"phone"`
		HealthID      *string `json:"health_id"`
		BloodPressure *string `json:"blood_pressure"`
		BloodSugar    *string `json:"blood_sugar"`
		BloodOxygen   *string `json:"blood_oxygen"`
		Temperature   *string `json:"temperature"`
		Weight        *string `json:"weight"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	p, err := h.app.Profiles.Update(r.Context(), caller, payload.UserID, profiles.UpdateInput{
		Nickname:      payload.Nickname,
		Phone:         payload.Phone,
		HealthID:      payload.HealthID,
		BloodPressure: payload.BloodPressure,
		BloodSugar:    payload.BloodSugar,
		BloodOxygen:   payload.BloodOxygen,
		Temperature:   payload.Temperature,
		Weight:        payload.Weight,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newProfileView(p))
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		httputil.WriteServiceError(w, errors.Internal("media store not configured", nil))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteServiceError(w, errors.Validation("file field is required"))
		return
	}
	defer file.Close()

	url, err := h.media.Save(header.Filename, file)
	if err != nil {
		httputil.WriteServiceError(w, errors.Validation(err.Error()))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	if _, err := h.app.Profiles.SetAvatar(r.Context(), caller, url); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]string{"url": url})
}

func (h *handler) searchGuardianship(w http.ResponseWriter, r *http.Request) {
	results, err := h.app.Directory.SearchProfilesByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	views := make([]profileView, 0, len(results))
	for _, p := range results {
		views = append(views, newProfileView(p))
	}
	httputil.WriteSuccess(w, http.StatusOK, views)
}

func (h *handler) createGuardianship(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		GuardianID   string `json:"guardian_id"`
		WardID       string `json:"ward_id"`
		Relationship string `json:"relationship"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	edge, err := h.app.Directory.Create(r.Context(), payload.GuardianID, payload.WardID, payload.Relationship)
	metrics.RecordEdgeOperation("create", err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, newEdgeView(edge))
}

func (h *handler) getGuardianship(w http.ResponseWriter, r *http.Request) {
	edge, err := h.app.Directory.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newEdgeView(edge))
}

func (h *handler) listGuardianEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.app.Directory.ListForGuardian(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newEdgeViews(edges))
}

func (h *handler) listWardEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.app.Directory.ListForWard(r.Context(), mux.Vars(r)["wardId"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newEdgeViews(edges))
}

func (h *handler) deleteGuardianship(w http.ResponseWriter, r *http.Request) {
	err := h.app.Directory.Delete(r.Context(), mux.Vars(r)["id"])
	metrics.RecordEdgeOperation("delete", err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil)
}

func (h *handler) wallet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	pkg, cards, err := h.app.Profiles.Wallet(r.Context(), caller, mux.Vars(r)["userId"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newWalletView(pkg, cards))
}

func (h *handler) listCards(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	_, cards, err := h.app.Profiles.Wallet(r.Context(), caller, "")
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	views := make([]cardView, 0, len(cards))
	for _, c := range cards {
		views = append(views, newCardView(c))
	}
	httputil.WriteSuccess(w, http.StatusOK, views)
}

func (h *handler) addCard(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name   string `json:"name"`
		Type   string `json:"type"`
		Number string `json:"number"`
		Remark string `json:"remark"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	card, err := h.app.Profiles.AddCard(r.Context(), caller, payload.Name,
		profile.CardType(payload.Type), payload.Number, payload.Remark)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, newCardView(card))
}

func (h *handler) updateCard(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name   string `json:"name"`
		Type   string `json:"type"`
		Number string `json:"number"`
		Remark string `json:"remark"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	card, err := h.app.Profiles.UpdateCard(r.Context(), caller, mux.Vars(r)["id"],
		payload.Name, profile.CardType(payload.Type), payload.Number, payload.Remark)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newCardView(card))
}

func (h *handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.app.Profiles.DeleteCard(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil)
}

func (h *handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	schedules, err := h.app.Profiles.ListSchedules(r.Context(), caller)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	views := make([]scheduleView, 0, len(schedules))
	for _, s := range schedules {
		views = append(views, newScheduleView(s))
	}
	httputil.WriteSuccess(w, http.StatusOK, views)
}

func (h *handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title        string    `json:"title"`
		ReminderTime time.Time `json:"reminder_time"`
		Content      string    `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	sch, err := h.app.Profiles.CreateSchedule(r.Context(), caller, payload.Title, payload.ReminderTime, payload.Content)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, newScheduleView(sch))
}

func (h *handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title        string    `json:"title"`
		ReminderTime time.Time `json:"reminder_time"`
		Content      string    `json:"content"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	sch, err := h.app.Profiles.UpdateSchedule(r.Context(), caller, mux.Vars(r)["id"],
		payload.Title, payload.ReminderTime, payload.Content)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newScheduleView(sch))
}

func (h *handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.app.Profiles.DeleteSchedule(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil)
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	reqs, err := h.app.Requests.List(r.Context(), caller)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, newRequestView(req))
	}
	httputil.WriteSuccess(w, http.StatusOK, views)
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type        string    `json:"type"`
		ServiceTime time.Time `json:"service_time"`
		Address     string    `json:"address"`
		Notes       string    `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	req, err := h.app.Requests.Create(r.Context(), caller, requests.CreateInput{
		Type:        servicereq.Type(payload.Type),
		ServiceTime: payload.ServiceTime,
		Address:     payload.Address,
		Notes:       payload.Notes,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, newRequestView(req))
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	req, err := h.app.Requests.Get(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newRequestView(req))
}

func (h *handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status         string `json:"status"`
		CaregiverID    string `json:"caregiver_id"`
		ClearCaregiver bool   `json:"clear_caregiver"`
		Address        string `json:"address"`
		Notes          string `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	caller, _ := auth.IdentityFromContext(r.Context())
	req, err := h.app.Requests.Update(r.Context(), caller, mux.Vars(r)["id"], requests.UpdateInput{
		Status:         servicereq.Status(payload.Status),
		CaregiverID:    payload.CaregiverID,
		ClearCaregiver: payload.ClearCaregiver,
		Address:        payload.Address,
		Notes:          payload.Notes,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newRequestView(req))
}

func (h *handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())
	if err := h.app.Requests.Delete(r.Context(), caller, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, nil)
}

func (h *handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httputil.WriteSuccess(w, http.StatusOK, h.audit.listLimit(limit))
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.app.Accounts.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newUserView(user))
}

func (h *handler) setUserGroups(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Groups []string `json:"groups"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		httputil.WriteServiceError(w, errors.Validation("invalid request body"))
		return
	}

	user, err := h.app.Accounts.SetGroups(r.Context(), mux.Vars(r)["id"], payload.Groups)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, newUserView(user))
}

// audited records the outcome of a mutating request in the audit trail.
func (h *handler) audited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		caller, _ := auth.IdentityFromContext(r.Context())
		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       caller.UserID,
			Groups:     strings.Join(caller.Groups, ","),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
