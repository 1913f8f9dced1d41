package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/claimdesk/incident-api/internal/config"
	"github.com/claimdesk/incident-api/internal/domain/identity"
	mysqlp "github.com/claimdesk/incident-api/internal/infra/db/mysql"
	postgresp "github.com/claimdesk/incident-api/internal/infra/db/postgres"
)

// groupDirectory is what provisioning needs from the backend: the full
// directory port plus group creation.
type groupDirectory interface {
	identity.Directory
	identity.GroupAdmin
}

// provision ensures the four role groups exist and creates the initial
// SuperAdmin account when SUPERADMIN_EMAIL is set. Safe to re-run: an
// existing SuperAdmin is left untouched.
func main() {
	log.SetFlags(0)
	log.SetPrefix("provision: ")

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()
	db, dir, err := openDirectory(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	if err := run(ctx, dir); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, dir groupDirectory) error {
	for _, role := range identity.AllRoles() {
		if err := dir.EnsureGroup(ctx, string(role)); err != nil {
			return fmt.Errorf("ensure group %s: %w", role, err)
		}
		log.Printf("group ok name=%s", role)
	}

	email := os.Getenv("SUPERADMIN_EMAIL")
	if email == "" {
		log.Printf("SUPERADMIN_EMAIL not set; skipping initial account")
		return nil
	}

	if _, err := dir.GetUser(ctx, email); err == nil {
		log.Printf("superadmin exists username=%s", email)
		return nil
	} else if !errors.Is(err, identity.ErrNotFound) {
		return fmt.Errorf("lookup %s: %w", email, err)
	}

	password := os.Getenv("SUPERADMIN_PASSWORD")
	if password == "" {
		password = "Tmp1!" + uuid.NewString()
		log.Printf("generated temporary password password=%s", password)
	}

	if _, err := dir.CreateUser(ctx, identity.NewDirectoryUser{
		Username:   email,
		Attributes: map[string]string{identity.AttrEmail: email},
	}); err != nil {
		return fmt.Errorf("create %s: %w", email, err)
	}
	if err := dir.SetPassword(ctx, email, password, false); err != nil {
		return fmt.Errorf("set password for %s: %w", email, err)
	}
	if err := dir.AddToGroup(ctx, email, string(identity.RoleSuperAdmin)); err != nil {
		return fmt.Errorf("add %s to group: %w", email, err)
	}
	log.Printf("superadmin created username=%s", email)
	return nil
}

func openDirectory(ctx context.Context, cfg *config.Config) (*sql.DB, groupDirectory, error) {
	if cfg.Database.Driver == "postgres" {
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		return db, postgresp.NewDirectoryStore(db), nil
	}
	db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, nil, err
	}
	return db, mysqlp.NewDirectoryStore(db), nil
}
