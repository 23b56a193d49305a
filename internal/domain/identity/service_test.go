package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/denticare/denticare/internal/platform/auth"
)

type mockRepo struct {
	clinics     map[uuid.UUID]*Clinic
	users       map[uuid.UUID]*User
	allIDsTaken bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		clinics: make(map[uuid.UUID]*Clinic),
		users:   make(map[uuid.UUID]*User),
	}
}

func (m *mockRepo) CreateClinic(_ context.Context, c *Clinic) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.clinics[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	c, ok := m.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) GetClinicByLicense(_ context.Context, license string) (*Clinic, error) {
	for _, c := range m.clinics {
		if c.LicenseNumber == license {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrClinicNotFound
}

func (m *mockRepo) CreateUser(_ context.Context, u *User) error {
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateUser(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) GetUserBySubject(_ context.Context, sub string) (*User, error) {
	for _, u := range m.users {
		if u.ExternalSubjectID != nil && *u.ExternalSubjectID == sub {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) FindUserForRegistration(_ context.Context, sub, email, mobile string) (*User, error) {
	for _, u := range m.users {
		if u.ExternalSubjectID != nil && *u.ExternalSubjectID == sub {
			cp := *u
			return &cp, nil
		}
	}
	for _, u := range m.users {
		if email != "" && u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
		if mobile != "" && u.MobileNumber != nil && *u.MobileNumber == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) FindUserByLogin(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if (u.Email != nil && *u.Email == username) ||
			(u.MobileNumber != nil && *u.MobileNumber == username) ||
			u.UserID == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) UserIDExists(_ context.Context, userID string) (bool, error) {
	if m.allIDsTaken {
		return true, nil
	}
	for _, u := range m.users {
		if u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(t *testing.T, repo *mockRepo) *Service {
	t.Helper()
	sessions := auth.NewSessionStore()
	t.Cleanup(sessions.Close)
	return NewService(repo, sessions, zerolog.Nop())
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		ClinicName:        "Smile Dental",
		Address:           Address{Street: "1 Main St", City: "Pune", State: "MH", Zip: "411001"},
		ContactNumber:     "+912012345678",
		LicenseNumber:     "LIC-001",
		FullName:          "Dr. A",
		Role:              RoleDoctor,
		Email:             "dr.a@smile.test",
		ExternalSubjectID: "sub-dr-a",
	}
}

func TestRegister_NewClinicAndUser(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	result, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if !result.IsNew {
		t.Error("expected a new user")
	}
	if result.User.UserID == "" {
		t.Error("expected a generated userId")
	}
	if result.User.EmailVerified || result.User.PhoneVerified {
		t.Error("new user must start unverified")
	}
	if len(repo.clinics) != 1 {
		t.Errorf("expected 1 clinic, got %d", len(repo.clinics))
	}
	if _, err := repo.GetClinicByLicense(context.Background(), "LIC-001"); err != nil {
		t.Errorf("clinic not created: %v", err)
	}
}

func TestRegister_ReusesClinicByLicense(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	first, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("first Register() error: %v", err)
	}

	in := validRegisterInput()
	in.FullName = "Dr. B"
	in.Email = "dr.b@smile.test"
	in.ExternalSubjectID = "sub-dr-b"
	second, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("second Register() error: %v", err)
	}

	if len(repo.clinics) != 1 {
		t.Errorf("expected clinic to be reused, got %d clinics", len(repo.clinics))
	}
	if first.User.ClinicID != second.User.ClinicID {
		t.Error("both users must belong to the same clinic")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing clinic name", func(in *RegisterInput) { in.ClinicName = "" }},
		{"missing address city", func(in *RegisterInput) { in.Address.City = "" }},
		{"missing license", func(in *RegisterInput) { in.LicenseNumber = "" }},
		{"missing full name", func(in *RegisterInput) { in.FullName = "" }},
		{"missing subject id", func(in *RegisterInput) { in.ExternalSubjectID = "" }},
		{"invalid role", func(in *RegisterInput) { in.Role = "Janitor" }},
		{"no contact method", func(in *RegisterInput) { in.Email = ""; in.MobileNumber = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newMockRepo())
			in := validRegisterInput()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRegister_SameSubjectRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestRegister_NewSubjectTakesOverAccount(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	first, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("first Register() error: %v", err)
	}

	// Mark verified so the reset is observable.
	verified := true
	if _, err := svc.UpdateVerificationStatus(context.Background(), "sub-dr-a", &verified, nil); err != nil {
		t.Fatalf("UpdateVerificationStatus() error: %v", err)
	}

	// Same email, fresh subject id: the provider account was re-created.
	in := validRegisterInput()
	in.ExternalSubjectID = "sub-dr-a-v2"
	result, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("re-register error: %v", err)
	}

	if result.IsNew {
		t.Error("expected the existing account to be updated, not a new one")
	}
	if result.User.UserID != first.User.UserID {
		t.Errorf("public userId must be retained: had %q, got %q", first.User.UserID, result.User.UserID)
	}
	if result.User.ExternalSubjectID == nil || *result.User.ExternalSubjectID != "sub-dr-a-v2" {
		t.Error("subject id must be replaced")
	}
	if result.User.EmailVerified || result.User.PhoneVerified || result.User.InitialVerificationMethod != nil {
		t.Error("verification state must reset on takeover")
	}
}

func TestRegister_IDGenerationExhausted(t *testing.T) {
	repo := newMockRepo()
	repo.allIDsTaken = true
	svc := newTestService(t, repo)

	_, err := svc.Register(context.Background(), validRegisterInput())
	if !errors.Is(err, ErrIDGenerationExhausted) {
		t.Errorf("expected ErrIDGenerationExhausted, got %v", err)
	}
}

func TestUpdateVerificationStatus_FirstChannelWins(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	verified := true
	user, err := svc.UpdateVerificationStatus(context.Background(), "sub-dr-a", &verified, nil)
	if err != nil {
		t.Fatalf("UpdateVerificationStatus() error: %v", err)
	}
	if !user.EmailVerified || user.PhoneVerified {
		t.Errorf("expected only email verified, got %+v", user)
	}
	if user.InitialVerificationMethod == nil || *user.InitialVerificationMethod != VerificationEmail {
		t.Error("expected initial method email")
	}

	// Phone verifying later must not displace the recorded initial method.
	user, err = svc.UpdateVerificationStatus(context.Background(), "sub-dr-a", nil, &verified)
	if err != nil {
		t.Fatalf("UpdateVerificationStatus() error: %v", err)
	}
	if !user.PhoneVerified {
		t.Error("expected phone verified")
	}
	if *user.InitialVerificationMethod != VerificationEmail {
		t.Errorf("initial method must stay email, got %q", *user.InitialVerificationMethod)
	}
}

func TestUpdateVerificationStatus_UnknownSubject(t *testing.T) {
	svc := newTestService(t, newMockRepo())
	verified := true
	_, err := svc.UpdateVerificationStatus(context.Background(), "sub-nobody", &verified, nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginWithoutConfirmation(t *testing.T) {
	repo := newMockRepo()
	sessions := auth.NewSessionStore()
	defer sessions.Close()
	svc := NewService(repo, sessions, zerolog.Nop())

	in := validRegisterInput()
	in.MobileNumber = "+919999999999"
	result, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	for _, username := range []string{"dr.a@smile.test", "+919999999999", result.User.UserID} {
		login, err := svc.LoginWithoutConfirmation(context.Background(), username)
		if err != nil {
			t.Fatalf("LoginWithoutConfirmation(%q) error: %v", username, err)
		}
		if login.SessionToken == "" {
			t.Fatal("expected a session token")
		}
		if login.ClinicName != "Smile Dental" {
			t.Errorf("expected clinic name in profile, got %q", login.ClinicName)
		}

		sess, err := sessions.Get(login.SessionToken)
		if err != nil {
			t.Fatalf("issued token not in store: %v", err)
		}
		if sess.UserID != result.User.ID {
			t.Error("session bound to wrong user")
		}
	}
}

func TestLoginWithoutConfirmation_Unknown(t *testing.T) {
	svc := newTestService(t, newMockRepo())
	if _, err := svc.LoginWithoutConfirmation(context.Background(), "nobody@test"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginWithoutConfirmation_EmptyUsername(t *testing.T) {
	svc := newTestService(t, newMockRepo())
	_, err := svc.LoginWithoutConfirmation(context.Background(), "")
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestMe(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	result, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	profile, err := svc.Me(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if profile.Name != "Dr. A" || profile.ClinicName != "Smile Dental" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestResolver(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo)

	result, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	resolver := NewResolver(repo)

	id, err := resolver.ResolveBySubject(context.Background(), "sub-dr-a")
	if err != nil {
		t.Fatalf("ResolveBySubject() error: %v", err)
	}
	if id.UserID != result.User.ID || id.ClinicID != result.User.ClinicID {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.Email != "dr.a@smile.test" {
		t.Errorf("expected email on identity, got %q", id.Email)
	}

	if _, err := resolver.ResolveBySubject(context.Background(), "sub-nobody"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected auth.ErrUserNotFound, got %v", err)
	}

	byID, err := resolver.ResolveByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("ResolveByID() error: %v", err)
	}
	if byID.UserID != result.User.ID {
		t.Errorf("unexpected identity: %+v", byID)
	}
	if _, err := resolver.ResolveByID(context.Background(), uuid.New()); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("expected auth.ErrUserNotFound, got %v", err)
	}
}
