package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/ec-shop-core/internal/domain/user"
	"github.com/go-chi/chi/v5"
)

// AuthHandlers handles authentication and user administration requests
type AuthHandlers struct {
	users *user.Service
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(users *user.Service) *AuthHandlers {
	return &AuthHandlers{users: users}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Address  string  `json:"address"`
	Phone    string  `json:"phone"`
	ImageURL *string `json:"image_url"`
	Country  string  `json:"country"`
	Gender   string  `json:"gender"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateUserRequest is the administrative user patch. Active is the string
// or boolean alias of Status.
type UpdateUserRequest struct {
	Username *string         `json:"username"`
	Email    *string         `json:"email"`
	Password *string         `json:"password"`
	FullName *string         `json:"full_name"`
	Address  *string         `json:"address"`
	Phone    *string         `json:"phone"`
	ImageURL *string         `json:"image_url"`
	Role     *string         `json:"role"`
	Country  *string         `json:"country"`
	Gender   *string         `json:"gender"`
	Status   *string         `json:"status"`
	Active   json.RawMessage `json:"active"`
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.users.Register(r.Context(), user.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Address:  req.Address,
		Phone:    req.Phone,
		ImageURL: req.ImageURL,
		Country:  req.Country,
		Gender:   req.Gender,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "User registered successfully", session)
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Login successful", session)
}

// Me returns the currently authenticated user
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	pub, err := h.users.Me(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "User retrieved successfully", pub)
}

func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.users.ChangePassword(r.Context(), r.Header.Get("Authorization"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "Password changed successfully", nil)
}

// User administration

func (h *AuthHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !canAccess(w, r, id) {
		return
	}

	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "User retrieved successfully", u)
}

func (h *AuthHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.users.Update(r.Context(), chi.URLParam(r, "id"), user.UpdateRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Address:  req.Address,
		Phone:    req.Phone,
		ImageURL: req.ImageURL,
		Role:     req.Role,
		Country:  req.Country,
		Gender:   req.Gender,
		Status:   req.Status,
		Active:   user.DecodeStatusInput(req.Active),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "User updated successfully", nil)
}

func (h *AuthHandlers) BlockUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Block(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "User blocked successfully", nil)
}

func (h *AuthHandlers) ActivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Activate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "User activated successfully", nil)
}
