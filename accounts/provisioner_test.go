package accounts_test

import (
	"context"
	"errors"
	"testing"

	"gcx-supplier-go/accounts"
	"gcx-supplier-go/database/dbtest"
	"gcx-supplier-go/models"
	"gcx-supplier-go/utils"
)

func TestCreateSupplierAccount(t *testing.T) {
	db := dbtest.Open(t)
	app := dbtest.NewApplication(t, db, nil)
	p := accounts.NewProvisioner(nil)

	creds, err := p.CreateSupplierAccount(context.Background(), db, app)
	if err != nil {
		t.Fatalf("CreateSupplierAccount: %v", err)
	}
	if creds.Existing || len(creds.TemporaryPassword) != 12 {
		t.Fatalf("creds = %+v", creds)
	}

	var user models.User
	if err := db.First(&user, creds.UserID).Error; err != nil {
		t.Fatal(err)
	}
	if user.Role != models.RoleSupplier || !user.MustChangePassword {
		t.Errorf("user = %+v", user)
	}
	if user.Password == creds.TemporaryPassword || !utils.CheckPasswordHash(creds.TemporaryPassword, user.Password) {
		t.Error("password must be stored as a bcrypt hash of the temporary password")
	}

	// A second call links the same account.
	again, err := p.CreateSupplierAccount(context.Background(), db, app)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Existing || again.UserID != creds.UserID || again.TemporaryPassword != "" {
		t.Errorf("second call = %+v", again)
	}
}

func TestCreateSupplierAccountRefusesStaffEmail(t *testing.T) {
	db := dbtest.Open(t)
	if _, _, err := accounts.EnsureStaff(db, "reviewer@gcx.com.gh", "password123"); err != nil {
		t.Fatal(err)
	}
	app := dbtest.NewApplication(t, db, func(a *models.SupplierApplication) { a.Email = "reviewer@gcx.com.gh" })

	_, err := accounts.NewProvisioner(nil).CreateSupplierAccount(context.Background(), db, app)
	if !errors.Is(err, accounts.ErrStaffEmail) {
		t.Fatalf("err = %v, want ErrStaffEmail", err)
	}
}

func TestEnsureStaffAndAuthenticate(t *testing.T) {
	db := dbtest.Open(t)
	user, created, err := accounts.EnsureStaff(db, "Reviewer@GCX.com.gh", "s3cret-pass")
	if err != nil || !created {
		t.Fatalf("EnsureStaff = %v, %v", created, err)
	}
	if _, created, _ := accounts.EnsureStaff(db, "reviewer@gcx.com.gh", "other"); created {
		t.Error("EnsureStaff created a duplicate")
	}

	got, err := accounts.Authenticate(context.Background(), db, "reviewer@gcx.com.gh", "s3cret-pass")
	if err != nil || got.ID != user.ID {
		t.Fatalf("Authenticate = %v, %v", got, err)
	}
	if _, err := accounts.Authenticate(context.Background(), db, "reviewer@gcx.com.gh", "wrong"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestCreateSupplierAccountRestoresDeletedUser(t *testing.T) {
	db := dbtest.Open(t)
	app := dbtest.NewApplication(t, db, nil)
	old := models.User{Email: app.Email, Password: "x", FullName: "Old", Role: models.RoleSupplier}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(&old).Error; err != nil {
		t.Fatal(err)
	}

	creds, err := accounts.NewProvisioner(nil).CreateSupplierAccount(context.Background(), db, app)
	if err != nil {
		t.Fatalf("CreateSupplierAccount: %v", err)
	}
	if creds.UserID != old.ID || creds.Existing || creds.TemporaryPassword == "" {
		t.Fatalf("creds = %+v", creds)
	}

	var user models.User
	if err := db.First(&user, old.ID).Error; err != nil {
		t.Fatalf("restored user not visible: %v", err)
	}
	if !user.IsActive || !user.MustChangePassword || !utils.CheckPasswordHash(creds.TemporaryPassword, user.Password) {
		t.Errorf("user = %+v", user)
	}
}

func TestChangePassword(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	app := dbtest.NewApplication(t, db, nil)
	creds, err := accounts.NewProvisioner(nil).CreateSupplierAccount(ctx, db, app)
	if err != nil {
		t.Fatal(err)
	}

	if err := accounts.ChangePassword(ctx, db, creds.UserID, "not-it", "cocoa-beans-2025"); !errors.Is(err, accounts.ErrInvalidCredentials) {
		t.Errorf("wrong current: err = %v", err)
	}
	if err := accounts.ChangePassword(ctx, db, creds.UserID, creds.TemporaryPassword, creds.TemporaryPassword); !errors.Is(err, accounts.ErrPasswordReused) {
		t.Errorf("reused: err = %v", err)
	}
	if err := accounts.ChangePassword(ctx, db, creds.UserID, creds.TemporaryPassword, "cocoa-beans-2025"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	var user models.User
	db.First(&user, creds.UserID)
	if user.MustChangePassword || !utils.CheckPasswordHash("cocoa-beans-2025", user.Password) {
		t.Errorf("user = %+v", user)
	}
}
