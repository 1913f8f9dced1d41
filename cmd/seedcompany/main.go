package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/claimdesk/incident-api/internal/config"
	domcompanies "github.com/claimdesk/incident-api/internal/domain/companies"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	mysqlp "github.com/claimdesk/incident-api/internal/infra/db/mysql"
	postgresp "github.com/claimdesk/incident-api/internal/infra/db/postgres"
)

// seedcompany creates a company plus its first Admin user, the minimal
// onboarding step for a new tenant.
func main() {
	log.SetFlags(0)
	log.SetPrefix("seedcompany: ")

	name := os.Getenv("COMPANY_NAME")
	admin := os.Getenv("ADMIN_EMAIL")
	if name == "" || admin == "" {
		log.Fatal("COMPANY_NAME and ADMIN_EMAIL are required")
	}

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()
	db, companyRepo, dir, err := open(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	companyID := os.Getenv("COMPANY_ID")
	if companyID == "" {
		companyID = uuid.NewString()
	}

	now := time.Now()
	err = companyRepo.Create(ctx, &domcompanies.Company{
		ID:        domcompanies.CompanyID(companyID),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	switch {
	case errors.Is(err, domcompanies.ErrAlreadyExists):
		log.Printf("company exists id=%s", companyID)
	case err != nil:
		log.Fatalf("create company: %v", err)
	default:
		log.Printf("company created id=%s name=%s", companyID, name)
	}

	if err := seedAdmin(ctx, dir, admin, companyID, name); err != nil {
		log.Fatal(err)
	}
}

// seedAdmin runs the same create, set-credential, add-to-group sequence
// the admin API uses. No rollback on partial failure; re-running the
// command picks up where it stopped.
func seedAdmin(ctx context.Context, dir identity.Directory, email, companyID, companyName string) error {
	if _, err := dir.GetUser(ctx, email); err == nil {
		log.Printf("admin exists username=%s", email)
		return nil
	} else if !errors.Is(err, identity.ErrNotFound) {
		return fmt.Errorf("lookup %s: %w", email, err)
	}

	password := "Tmp1!" + uuid.NewString()
	if _, err := dir.CreateUser(ctx, identity.NewDirectoryUser{
		Username: email,
		Attributes: map[string]string{
			identity.AttrEmail:       email,
			identity.AttrCompanyID:   companyID,
			identity.AttrCompanyName: companyName,
		},
	}); err != nil {
		return fmt.Errorf("create %s: %w", email, err)
	}
	if err := dir.SetPassword(ctx, email, password, false); err != nil {
		return fmt.Errorf("set password for %s: %w", email, err)
	}
	if err := dir.AddToGroup(ctx, email, string(identity.RoleAdmin)); err != nil {
		return fmt.Errorf("add %s to group: %w", email, err)
	}
	log.Printf("admin created username=%s temp_password=%s", email, password)
	return nil
}

func open(ctx context.Context, cfg *config.Config) (*sql.DB, domcompanies.Repository, identity.Directory, error) {
	if cfg.Database.Driver == "postgres" {
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return db, postgresp.NewCompanyRepository(db), postgresp.NewDirectoryStore(db), nil
	}
	db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, nil, nil, err
	}
	return db, mysqlp.NewCompanyRepository(db), mysqlp.NewDirectoryStore(db), nil
}
