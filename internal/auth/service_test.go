package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"vmxio.com/skillforge/internal/apierr"
	"vmxio.com/skillforge/internal/auth"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/models"
	"vmxio.com/skillforge/internal/store/storetest"
)

func newService(t *testing.T) (*auth.Service, context.Context) {
	t.Helper()
	db := storetest.New(t)
	svc := auth.NewService(db, logger.Nop(), auth.TokenConfig{Secret: "test-secret", Issuer: "skillforge", TTL: time.Hour})
	svc.HashCost = 4
	return svc, context.Background()
}

func TestRegisterAndLogin(t *testing.T) {
	svc, ctx := newService(t)

	sess, err := svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "Ada@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.User.Role != models.RoleStudent || sess.User.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", sess.User)
	}
	claims, err := svc.Authenticate(sess.Token)
	if err != nil || claims.UserID != sess.User.ID {
		t.Fatalf("token does not identify user: %v", err)
	}

	_, err = svc.Register(ctx, auth.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	if apierr.StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	login, err := svc.Login(ctx, auth.LoginInput{Email: "ada@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.LastLogin == nil {
		t.Fatalf("expected last login to be set")
	}
}

func TestLoginFailures(t *testing.T) {
	svc, ctx := newService(t)
	if _, err := svc.Register(ctx, auth.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name    string
		email   string
		pass    string
		message string
	}{
		{"unknown email", "nobody@example.com", "secret1", "Invalid email or password"},
		{"wrong password", "bob@example.com", "secret2", "Invalid email or password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, auth.LoginInput{Email: tt.email, Password: tt.pass})
			apiErr := apierr.From(err)
			if apiErr == nil || apiErr.Status != http.StatusUnauthorized || apiErr.Message != tt.message {
				t.Fatalf("expected 401 %q, got %v", tt.message, err)
			}
		})
	}
}

func TestLoginDeactivated(t *testing.T) {
	db := storetest.New(t)
	svc := auth.NewService(db, logger.Nop(), auth.TokenConfig{Secret: "s", TTL: time.Hour})
	u := storetest.CreateUser(t, db, "gone@example.com", models.RoleStudent)
	if err := db.Model(&u).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := svc.Login(context.Background(), auth.LoginInput{Email: "gone@example.com", Password: "password123"})
	if apierr.From(err) == nil || apierr.From(err).Message != "Account is deactivated" {
		t.Fatalf("expected deactivated error, got %v", err)
	}
}

func TestRefreshAndMe(t *testing.T) {
	svc, ctx := newService(t)
	svc.AdminEmails = []string{"cy@example.com"}
	sess, err := svc.Register(ctx, auth.RegisterInput{Name: "Cy", Email: "cy@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	claims, _ := svc.Authenticate(sess.Token)
	token, err := svc.Refresh(*claims)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	refreshed, err := svc.Authenticate(token)
	if err != nil || refreshed.Role != models.RoleAdmin {
		t.Fatalf("refreshed token lost role: %v", err)
	}

	me, err := svc.Me(ctx, claims.UserID)
	if err != nil || me.Email != "cy@example.com" {
		t.Fatalf("me: %+v %v", me, err)
	}
	if _, err := svc.Me(ctx, 9999); apierr.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Logout(ctx, *claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestAdminEmails(t *testing.T) {
	db := storetest.New(t)
	svc := auth.NewService(db, logger.Nop(), auth.TokenConfig{Secret: "s", TTL: time.Hour})
	svc.HashCost = 4
	svc.AdminEmails = []string{" Root@Example.com ", "later@example.com"}
	ctx := context.Background()

	sess, err := svc.Register(ctx, auth.RegisterInput{Name: "Root", Email: "root@example.com", Password: "secret1"})
	if err != nil || sess.User.Role != models.RoleAdmin {
		t.Fatalf("expected listed email to register as admin: %+v %v", sess.User, err)
	}
	plain, err := svc.Register(ctx, auth.RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "secret1"})
	if err != nil || plain.User.Role != models.RoleStudent {
		t.Fatalf("expected unlisted email to register as student: %+v %v", plain.User, err)
	}

	storetest.CreateUser(t, db, "later@example.com", models.RoleStudent)
	login, err := svc.Login(ctx, auth.LoginInput{Email: "later@example.com", Password: "password123"})
	if err != nil || login.User.Role != models.RoleAdmin {
		t.Fatalf("expected login to promote listed email: %+v %v", login.User, err)
	}
	claims, err := svc.Authenticate(login.Token)
	if err != nil || claims.Role != models.RoleAdmin {
		t.Fatalf("expected admin token, got %+v %v", claims, err)
	}
	var stored models.User
	db.Where("email = ?", "later@example.com").First(&stored)
	if stored.Role != models.RoleAdmin {
		t.Fatalf("promotion not persisted: %s", stored.Role)
	}

	eve, err := svc.Login(ctx, auth.LoginInput{Email: "eve@example.com", Password: "secret1"})
	if err != nil || eve.User.Role != models.RoleStudent {
		t.Fatalf("unlisted login changed role: %+v %v", eve.User, err)
	}
}
