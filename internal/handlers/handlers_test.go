package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-api/internal/availability"
	"github.com/harentsoaR/clinic-api/internal/cache"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

const cronSecret = "cron-secret"

type fakeIdentity struct{}

func (fakeIdentity) CreateIdentity(_ context.Context, email, _, _, _ string) (string, error) {
	return "uid-" + email, nil
}

func (fakeIdentity) DeleteIdentity(context.Context, string) error { return nil }

type fakeStorage struct{}

func (fakeStorage) Upload(_ context.Context, folder, filename string, r io.Reader) (services.StoredFile, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return services.StoredFile{}, err
	}
	return services.StoredFile{
		URL:      "https://files.example/clinic/" + folder + "/" + filename,
		PublicID: "clinic/" + folder + "/" + filename,
	}, nil
}

func (fakeStorage) Delete(context.Context, string) error { return nil }

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *memStore
	jwt    *utils.JWTManager
	h      *Handler
	doctor models.Doctor
	// tokens by role
	patient, doctorToken, admin string
	patientID                   primitive.ObjectID
}

// Saturday 2026-10-17 10:00 UTC; the doctor works Monday to Friday.
var fixedNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := newMemStore()
	users, doctors := memUsers{store}, memDoctors{store}
	appointments, tickets := memAppointments{store}, memTickets{store}

	jwt := utils.NewJWTManager("test-secret", time.Hour)
	notifier := services.NewNotificationService(services.NewStubEmailSender(logger), "Clinic", "support@clinic.test", logger)
	t.Cleanup(notifier.Wait)

	clock := availability.ClockFunc(func() time.Time { return fixedNow })
	calc := availability.NewCalculator(clock, time.UTC)
	directory := cache.NewDoctorDirectory(doctors, nil, time.Minute, logger)

	h := NewHandler(Services{
		Accounts:     services.NewAccountService(users, jwt, notifier, logger),
		Doctors:      services.NewDoctorService(directory, doctors, fakeStorage{}, logger),
		Booking:      services.NewBookingService(calc, directory, doctors, users, appointments, notifier, logger),
		Provisioning: services.NewProvisioningService(users, doctors, fakeIdentity{}, notifier, logger),
		Support:      services.NewSupportService(tickets, fakeStorage{}, notifier, logger),
		Export:       services.NewExportService(appointments, time.UTC),
		Reminders:    services.NewReminderService(appointments, notifier, clock, time.UTC, 1, logger),
	}, nil, logger)

	router := gin.New()
	RegisterRoutes(router, h, RouteConfig{Tokens: jwt, CronSecret: cronSecret})

	ts := &testServer{t: t, router: router, store: store, jwt: jwt, h: h}
	ctx := context.Background()

	patient := models.User{FullName: "Pat Patient", Email: "pat@example.com", Role: models.RolePatient}
	require.NoError(t, users.Create(ctx, &patient))
	doctorUser := models.User{FullName: "Dr Who", Email: "who@clinic.test", Role: models.RoleDoctor}
	require.NoError(t, users.Create(ctx, &doctorUser))
	adminUser := models.User{FullName: "Ada Admin", Email: "ada@clinic.test", Role: models.RoleAdmin}
	require.NoError(t, users.Create(ctx, &adminUser))

	ts.doctor = models.Doctor{
		UserID:   doctorUser.ID,
		FullName: doctorUser.FullName,
		Email:    doctorUser.Email,
		Schedule: models.DefaultSchedule(),
		Active:   true,
	}
	require.NoError(t, doctors.Create(ctx, &ts.doctor))

	ts.patientID = patient.ID
	ts.patient = ts.token(patient)
	ts.doctorToken = ts.token(doctorUser)
	ts.admin = ts.token(adminUser)
	return ts
}

func (ts *testServer) token(u models.User) string {
	tok, err := ts.jwt.GenerateJWT(u.ID.Hex(), u.Role, u.Email)
	require.NoError(ts.t, err)
	return tok
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) book(date, slot string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/api/appointments", ts.patient, gin.H{
		"doctorId": ts.doctor.ID.Hex(),
		"date":     date,
		"time":     slot,
		"reason":   "checkup",
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type availabilityBody struct {
	DoctorID string   `json:"doctorId"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

func TestGetAvailability(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/doctors/" + ts.doctor.ID.Hex() + "/availability?date="

	t.Run("working day", func(t *testing.T) {
		w := ts.do(http.MethodGet, path+"2026-10-19", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[availabilityBody](t, w)
		assert.Equal(t, ts.doctor.ID.Hex(), body.DoctorID)
		assert.Len(t, body.Slots, 16)
		assert.Equal(t, "09:00", body.Slots[0])
		assert.Equal(t, "16:30", body.Slots[15])
	})

	t.Run("weekend is empty", func(t *testing.T) {
		w := ts.do(http.MethodGet, path+"2026-10-18", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[availabilityBody](t, w).Slots)
	})

	t.Run("bad date", func(t *testing.T) {
		w := ts.do(http.MethodGet, path+"19/10/2026", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing date", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/doctors/"+ts.doctor.ID.Hex()+"/availability", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/doctors/"+primitive.NewObjectID().Hex()+"/availability?date=2026-10-19", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/doctors/nope/availability?date=2026-10-19", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetAvailabilityBrokenSchedule(t *testing.T) {
	ts := newTestServer(t)
	ts.store.mu.Lock()
	d := ts.store.doctors[ts.doctor.ID]
	d.Schedule.SlotDuration = 0
	ts.store.doctors[ts.doctor.ID] = d
	ts.store.mu.Unlock()

	w := ts.do(http.MethodGet, "/api/doctors/"+ts.doctor.ID.Hex()+"/availability?date=2026-10-19", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.book("2026-10-19", "09:30")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	apt := decode[models.Appointment](t, w)
	assert.Equal(t, models.StatusPending, apt.Status)
	assert.Equal(t, ts.patientID, apt.PatientID)

	// The slot is now taken.
	w = ts.book("2026-10-19", "09:30")
	assert.Equal(t, http.StatusConflict, w.Code)

	avail := decode[availabilityBody](t, ts.do(http.MethodGet,
		"/api/doctors/"+ts.doctor.ID.Hex()+"/availability?date=2026-10-19", "", nil))
	assert.NotContains(t, avail.Slots, "09:30")
	assert.Len(t, avail.Slots, 15)

	// The doctor confirms, the patient cannot complete.
	w = ts.do(http.MethodPatch, "/api/appointments/"+apt.ID.Hex()+"/confirm", ts.doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusConfirmed, decode[models.Appointment](t, w).Status)

	w = ts.do(http.MethodPatch, "/api/appointments/"+apt.ID.Hex()+"/complete", ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Cancelling frees the slot again.
	w = ts.do(http.MethodPatch, "/api/appointments/"+apt.ID.Hex()+"/cancel", ts.patient, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodPatch, "/api/appointments/"+apt.ID.Hex()+"/confirm", ts.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.book("2026-10-19", "09:30")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBookingRejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		date string
		slot string
		want int
	}{
		{"off grid", "2026-10-19", "09:10", http.StatusConflict},
		{"after hours", "2026-10-19", "17:00", http.StatusConflict},
		{"non working day", "2026-10-18", "09:00", http.StatusConflict},
		{"past date", "2026-10-16", "09:00", http.StatusConflict},
		{"bad date", "2026-13-01", "09:00", http.StatusBadRequest},
		{"bad time", "2026-10-19", "nine", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.book(tc.date, tc.slot)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	t.Run("doctors cannot book", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/appointments", ts.doctorToken, gin.H{
			"doctorId": ts.doctor.ID.Hex(), "date": "2026-10-19", "time": "10:00",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestListAppointmentsScoping(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.book("2026-10-19", "10:00").Code)
	require.Equal(t, http.StatusCreated, ts.book("2026-10-20", "10:00").Code)

	w := ts.do(http.MethodGet, "/api/appointments?from=2026-10-20", ts.patient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Appointment](t, w), 1)

	w = ts.do(http.MethodGet, "/api/appointments", ts.doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Appointment](t, w), 2)

	w = ts.do(http.MethodGet, "/api/appointments?status=unknown", ts.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/auth/register", "", gin.H{
		"fullName": "New Patient", "email": "New@Example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/auth/register", "", gin.H{
		"fullName": "Again", "email": "new@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/auth/login", "", gin.H{"email": "new@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/auth/login", "", gin.H{"email": "new@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, w)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, models.RolePatient, login.User.Role)

	w = ts.do(http.MethodGet, "/api/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new@example.com", decode[models.User](t, w).Email)
	assert.NotContains(t, w.Body.String(), "correct-horse")
}

func TestRoleGuards(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/admin/users", ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPut, "/api/doctors/"+ts.doctor.ID.Hex()+"/schedule", ts.patient, models.DefaultSchedule())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/admin/users?role=doctor", ts.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 1)
}

func TestUpdateSchedule(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/doctors/" + ts.doctor.ID.Hex() + "/schedule"

	w := ts.do(http.MethodPut, path, ts.doctorToken, models.DoctorSchedule{
		StartHour: "08:00", EndHour: "12:00", WorkDays: []int{1}, SlotDuration: 60,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	avail := decode[availabilityBody](t, ts.do(http.MethodGet,
		"/api/doctors/"+ts.doctor.ID.Hex()+"/availability?date=2026-10-19", "", nil))
	assert.Equal(t, []string{"08:00", "09:00", "10:00", "11:00"}, avail.Slots)

	w = ts.do(http.MethodPut, path, ts.doctorToken, models.DoctorSchedule{
		StartHour: "8am", EndHour: "12:00", WorkDays: []int{1}, SlotDuration: 60,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProvisionDoctor(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/admin/users", ts.admin, gin.H{
		"fullName": "Dr House", "email": "house@clinic.test", "role": "doctor", "specialty": "Diagnostics",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[services.ProvisionResult](t, w)
	require.NotNil(t, res.Doctor)
	assert.Equal(t, "uid-house@clinic.test", res.User.FirebaseUID)
	assert.NotEmpty(t, res.TemporaryPassword)

	w = ts.do(http.MethodGet, "/api/doctors", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Doctor](t, w), 2)

	w = ts.do(http.MethodPost, "/api/admin/users", ts.admin, gin.H{
		"fullName": "Nobody", "email": "nobody@clinic.test", "role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSupportTicketWithAttachment(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("kind", models.TicketKindBug))
	require.NoError(t, mw.WriteField("subject", "Calendar is blank"))
	require.NoError(t, mw.WriteField("message", "Nothing shows on Mondays"))
	part, err := mw.CreateFormFile("attachment", "screen.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/support", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.patient)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	ticket := decode[models.SupportTicket](t, w)
	assert.True(t, strings.HasPrefix(ticket.AttachmentURL, "https://files.example/clinic/support/"))

	w = ts.do(http.MethodPatch, "/api/admin/support/"+ticket.ID.Hex()+"/resolve", ts.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPatch, "/api/admin/support/"+ticket.ID.Hex()+"/resolve", ts.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAppointments(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.book("2026-10-19", "11:00").Code)

	w := ts.do(http.MethodGet, "/api/admin/appointments/export.csv?from=2026-10-01&to=2026-10-31", ts.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "appointments_2026-10-01_2026-10-31.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,date,time,status"))
	assert.Contains(t, lines[1], "2026-10-19,11:00,pending")

	w = ts.do(http.MethodGet, "/api/admin/appointments/export.csv?from=2026-10-31&to=2026-10-01", ts.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunReminders(t *testing.T) {
	ts := newTestServer(t)
	// Reminders go out one day ahead; seed an appointment for tomorrow directly.
	apt := models.Appointment{
		PatientID: ts.patientID, PatientEmail: "pat@example.com", DoctorID: ts.doctor.ID,
		Date: "2026-10-18", Time: "10:00", Status: models.StatusConfirmed,
	}
	require.NoError(t, memAppointments{ts.store}.Create(context.Background(), &apt))

	post := func(secret string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/cron/reminders", nil)
		if secret != "" {
			req.Header.Set("X-Cron-Secret", secret)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, post("").Code)
	assert.Equal(t, http.StatusUnauthorized, post("wrong").Code)

	w := post(cronSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[services.ReminderResult](t, w)
	assert.Equal(t, "2026-10-18", res.Date)
	assert.Equal(t, 1, res.Sent)

	res = decode[services.ReminderResult](t, post(cronSecret))
	assert.Zero(t, res.Due)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.h.Ping = func(context.Context) error { return errors.New("no primary") }
	w = ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
