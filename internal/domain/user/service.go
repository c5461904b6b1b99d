package user

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-shop-core/internal/apperr"
	"github.com/example/ec-shop-core/internal/auth"
	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"go.uber.org/zap"
)

// Session is what login and registration hand back to the client.
type Session struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}

// RegisterRequest is a self-service sign-up. Role and status are not
// accepted from the caller.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	FullName string
	Address  string
	Phone    string
	ImageURL *string
	Country  string
	Gender   string
}

// UpdateRequest is an administrative user patch. Active is the string or
// boolean alias of Status and wins when both are set.
type UpdateRequest struct {
	Username *string
	Email    *string
	Password *string
	FullName *string
	Address  *string
	Phone    *string
	ImageURL *string
	Role     *string
	Country  *string
	Gender   *string
	Status   *string
	Active   StatusInput
}

// Service runs the identity flows.
type Service struct {
	store         Store
	tokens        *auth.TokenService
	journal       journal.Journal
	logger        *zap.Logger
	hashPasswords bool
	now           func() time.Time
}

type Option func(*Service)

// WithPasswordHashing stores new passwords as bcrypt hashes. Existing plain
// records keep working.
func WithPasswordHashing(enabled bool) Option {
	return func(s *Service) { s.hashPasswords = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, tokens *auth.TokenService, j journal.Journal, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:   store,
		tokens:  tokens,
		journal: j,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Login checks the credentials of an account. Blocked accounts are refused
// before the password is looked at.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid email or password", ErrBadCredentials)
	}
	if err != nil {
		return nil, apperr.Internal("Error finding user", err)
	}

	if u.Blocked() {
		return nil, apperr.Wrap(apperr.KindForbidden, "Your account has been blocked", ErrAccountBlocked)
	}
	if !auth.CheckPassword(password, u.Password) {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid email or password", ErrBadCredentials)
	}

	return s.session(u)
}

// Register creates a customer account and logs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Username, email and password are required", ErrMissingRequired)
	}

	_, err := s.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, apperr.Wrap(apperr.KindBadRequest, "Email already registered", ErrEmailTaken)
	case !errors.Is(err, ErrUserNotFound):
		return nil, apperr.Internal("Error finding user", err)
	}

	taken, err := s.store.ExistsWithUsername(ctx, req.Username)
	if err != nil {
		return nil, apperr.Internal("Error finding user", err)
	}
	if taken {
		return nil, apperr.Wrap(apperr.KindBadRequest, "Username already taken", ErrUsernameTaken)
	}

	password, err := s.storedPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("Error hashing password", err)
	}

	now := s.timestamp()
	u := &User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  password,
		FullName:  req.FullName,
		Address:   req.Address,
		Phone:     req.Phone,
		ImageURL:  req.ImageURL,
		Role:      RoleCustomer,
		Country:   orDefault(req.Country, DefaultCountry),
		Gender:    orDefault(req.Gender, DefaultGender),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	id, err := s.store.Insert(ctx, u)
	if err != nil {
		return nil, apperr.Internal("Error creating user", err)
	}
	u.ID = id

	s.record(ctx, id, EventUserRegistered, UserRegistered{
		UserID: id, Email: u.Email, Username: u.Username, Role: u.Role, RegisteredAt: now,
	})
	return s.session(u)
}

// Authenticate resolves the user behind an Authorization header value.
func (s *Service) Authenticate(ctx context.Context, header string) (*User, error) {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Missing authorization token", err)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid token", err)
	}
	return s.byID(ctx, claims.UserID, "Error retrieving user")
}

// Me returns the public projection of the authenticated user.
func (s *Service) Me(ctx context.Context, header string) (*PublicUser, error) {
	u, err := s.Authenticate(ctx, header)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// ChangePassword replaces the authenticated user's password after checking
// the current one.
func (s *Service) ChangePassword(ctx context.Context, header, current, next string) error {
	u, err := s.Authenticate(ctx, header)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(current, u.Password) {
		return apperr.Wrap(apperr.KindUnauthorized, "Current password is incorrect", ErrBadCredentials)
	}
	if next == "" {
		return apperr.BadRequest("New password is required")
	}

	password, err := s.storedPassword(next)
	if err != nil {
		return apperr.Internal("Error hashing password", err)
	}
	now := s.timestamp()
	if _, err := s.store.UpdateFields(ctx, u.ID, Fields{Password: &password, UpdatedAt: now}); err != nil {
		return apperr.Internal("Error updating password", err)
	}

	s.record(ctx, u.ID, EventPasswordChanged, PasswordChanged{UserID: u.ID, ChangedAt: now})
	return nil
}

// Update applies an administrative patch.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) error {
	now := s.timestamp()
	f := Fields{
		Username:  req.Username,
		Email:     req.Email,
		FullName:  req.FullName,
		Address:   req.Address,
		Phone:     req.Phone,
		ImageURL:  req.ImageURL,
		Country:   req.Country,
		Gender:    req.Gender,
		UpdatedAt: now,
	}

	if req.Role != nil {
		if *req.Role != RoleAdmin && *req.Role != RoleCustomer {
			return apperr.Wrap(apperr.KindBadRequest, "role must be 'admin' or 'customer'", ErrInvalidRole)
		}
		f.Role = req.Role
	}
	if req.Status != nil {
		st, err := ParseStatus(*req.Status)
		if err != nil {
			return apperr.Wrap(apperr.KindBadRequest, "status must be 'active' or 'blocked'", err)
		}
		f.Status = &st
	}
	if req.Active != nil {
		st := req.Active.Resolve()
		f.Status = &st
	}
	if req.Password != nil {
		password, err := s.storedPassword(*req.Password)
		if err != nil {
			return apperr.Internal("Error hashing password", err)
		}
		f.Password = &password
	}

	if err := s.update(ctx, id, f, "Error updating user"); err != nil {
		return err
	}

	s.record(ctx, id, EventUserUpdated, UserUpdated{UserID: id, Fields: f.names(), UpdatedAt: now})
	return nil
}

// Block sets the account status to blocked. Tokens already issued stay valid
// until they expire.
func (s *Service) Block(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusBlocked, "Error blocking user")
}

// Activate sets the account status to active.
func (s *Service) Activate(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusActive, "Error activating user")
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.byID(ctx, id, "Error retrieving user")
}

func (s *Service) setStatus(ctx context.Context, id string, st Status, internalMsg string) error {
	now := s.timestamp()
	if err := s.update(ctx, id, Fields{Status: &st, UpdatedAt: now}, internalMsg); err != nil {
		return err
	}
	s.record(ctx, id, EventStatusChanged, UserStatusChanged{UserID: id, Status: st, ChangedAt: now})
	return nil
}

func (s *Service) update(ctx context.Context, id string, f Fields, internalMsg string) error {
	matched, err := s.store.UpdateFields(ctx, id, f)
	if errors.Is(err, ErrInvalidUserID) {
		return apperr.Wrap(apperr.KindBadRequest, "Invalid user ID", err)
	}
	if err != nil {
		return apperr.Internal(internalMsg, err)
	}
	if !matched {
		return apperr.Wrap(apperr.KindNotFound, "User not found", ErrUserNotFound)
	}
	return nil
}

func (s *Service) byID(ctx context.Context, id, internalMsg string) (*User, error) {
	u, err := s.store.FindByID(ctx, id)
	switch {
	case errors.Is(err, ErrInvalidUserID):
		return nil, apperr.Wrap(apperr.KindBadRequest, "Invalid user ID", err)
	case errors.Is(err, ErrUserNotFound):
		return nil, apperr.Wrap(apperr.KindNotFound, "User not found", err)
	case err != nil:
		return nil, apperr.Internal(internalMsg, err)
	}
	return u, nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, _, err := s.tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, apperr.Internal("Error generating token", err)
	}
	return &Session{Token: token, User: u.Public()}, nil
}

func (s *Service) storedPassword(plain string) (string, error) {
	if !s.hashPasswords {
		return plain, nil
	}
	return auth.HashPassword(plain)
}

func (s *Service) record(ctx context.Context, userID, eventType string, data any) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Append(ctx, userID, AggregateType, eventType, data); err != nil {
		s.logger.Warn("journal append failed",
			zap.String("user_id", userID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// names lists the fields set in f, without the password value.
func (f Fields) names() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(f.Username != nil, "username")
	add(f.Email != nil, "email")
	add(f.Password != nil, "password")
	add(f.FullName != nil, "full_name")
	add(f.Address != nil, "address")
	add(f.Phone != nil, "phone")
	add(f.ImageURL != nil, "image_url")
	add(f.Role != nil, "role")
	add(f.Country != nil, "country")
	add(f.Gender != nil, "gender")
	add(f.Status != nil, "status")
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
