package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// StaffStore defines the database methods needed by staff handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StaffStore interface {
	ListStaff(ctx context.Context, arg database.ListStaffParams) ([]database.Staff, error)
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	DeactivateStaff(ctx context.Context, arg database.DeactivateStaffParams) (uuid.UUID, error)
}

// StaffHandler manages the accounts of a tenant.
type StaffHandler struct {
	store StaffStore
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(store StaffStore) *StaffHandler {
	return &StaffHandler{store: store}
}

// RegisterRoutes registers the staff list, used to pick drivers.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/staff
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterOwnerRoutes registers account management on the same mount.
func (h *StaffHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type staffResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toStaffResponse(s database.Staff) staffResponse {
	return staffResponse{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Email:     s.Email,
		FullName:  s.FullName,
		Role:      s.Role,
		CreatedAt: s.CreatedAt,
	}
}

// --- Handlers ---

// List handles GET /tenants/{tid}/staff?role=DRIVER.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	params := database.ListStaffParams{TenantID: tenantID}
	if role := r.URL.Query().Get("role"); role != "" {
		if !enum.IsStaffRole(role) {
			writeBadRequest(w, "invalid role")
			return
		}
		params.Role = pgtype.Text{String: role, Valid: true}
	}

	staff, err := h.store.ListStaff(r.Context(), params)
	if err != nil {
		writeError(w, r, "list staff", err)
		return
	}

	resp := make([]staffResponse, len(staff))
	for i, s := range staff {
		resp[i] = toStaffResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /tenants/{tid}/staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		writeBadRequest(w, "email, password, full_name, and role are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeBadRequest(w, "invalid email format")
		return
	}
	if !enum.IsStaffRole(req.Role) {
		writeBadRequest(w, "invalid role")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, "create staff: hash password", err)
		return
	}

	staff, err := h.store.CreateStaff(r.Context(), database.CreateStaffParams{
		TenantID:     tenantID,
		Email:        req.Email,
		PasswordHash: string(hashed),
		FullName:     req.FullName,
		Role:         req.Role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, errorBody{Error: "email already exists", Code: "email_taken"})
			return
		}
		writeError(w, r, "create staff", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(staff))
}

// Delete handles DELETE /tenants/{tid}/staff/{id}. Accounts are
// deactivated so orders keep their creator and driver.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		writeBadRequest(w, "invalid tenant ID")
		return
	}
	staffID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid staff ID")
		return
	}

	_, err = h.store.DeactivateStaff(r.Context(), database.DeactivateStaffParams{ID: staffID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "staff not found"})
			return
		}
		writeError(w, r, "deactivate staff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
