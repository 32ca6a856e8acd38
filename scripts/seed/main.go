package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/app"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/cache"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/db"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/postgres"
)

var rolePermissions = map[authz.Role][]string{
	authz.RoleEmployee: {
		"leads.read", "leads.create", "leads.update",
		"contacts.read", "contacts.create", "companies.read",
		"tickets.read", "tickets.create", "tickets.update",
		"tasks.*", "documents.read", "documents.create", "articles.read",
	},
	authz.RoleManager: {
		"leads.*", "contacts.*", "companies.*", "interactions.*",
		"tickets.*", "tasks.*", "documents.*", "articles.read", "profiles.read",
		app.JobsReadPermission.String(),
	},
}

type seedProfile struct {
	email string
	name  string
	role  authz.Role
	dept  string
}

var profiles = []seedProfile{
	{"admin@companyos.local", "Ada Admin", authz.RoleAdmin, ""},
	{"sales.lead@companyos.local", "Sam Manager", authz.RoleManager, "Sales"},
	{"sales.rep@companyos.local", "Riley Rep", authz.RoleEmployee, "Sales"},
	{"support.lead@companyos.local", "Sky Manager", authz.RoleManager, "Support"},
	{"support.agent@companyos.local", "Alex Agent", authz.RoleEmployee, "Support"},
}

func main() {
	schemaPath := flag.String("schema", "db/schema.sql", "schema file applied before seeding")
	issue := flag.Bool("sessions", true, "issue a bearer session per seeded profile")
	flag.Parse()

	if err := checkResources(); err != nil {
		log.Fatalf("role permissions: %v", err)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}
	fmt.Println("→ Applying schema...")
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	var ids map[string]uuid.UUID
	store := postgres.New(pool)
	err = store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		fmt.Println("→ Seeding role permissions...")
		if err := seedPermissions(ctx, tx); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
		fmt.Println("→ Seeding departments and profiles...")
		ids, err = seedProfiles(ctx, tx)
		if err != nil {
			return fmt.Errorf("seed profiles: %w", err)
		}
		fmt.Println("→ Seeding CRM data...")
		if err := seedCRM(ctx, tx, ids); err != nil {
			return fmt.Errorf("seed crm: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	if *issue {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()
		sessions := authz.NewSessionStore(redisClient, cfg.SessionTTL)
		for _, p := range profiles {
			sess, err := sessions.Issue(ctx, ids[p.email])
			if err != nil {
				log.Fatalf("issue session for %s: %v", p.email, err)
			}
			fmt.Printf("  %-32s %-10s %s\n", p.email, p.role, sess.Token)
		}
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// checkResources rejects grants on resources that are neither a registered
// entity nor the jobs endpoints.
func checkResources() error {
	for role, perms := range rolePermissions {
		for _, raw := range perms {
			perm, err := authz.ParsePermission(raw)
			if err != nil {
				return err
			}
			if perm.Resource == app.JobsReadPermission.Resource {
				continue
			}
			if _, ok := entity.Lookup(perm.Resource); !ok {
				return fmt.Errorf("%s grants %q on unknown resource (known: %s)", role, raw, strings.Join(entity.Names(), ", "))
			}
		}
	}
	return nil
}

func seedPermissions(ctx context.Context, tx storage.Store) error {
	for role, perms := range rolePermissions {
		if _, err := tx.Delete(ctx, authz.RolePermissionsTable, query.Eq{Column: "role", Value: string(role)}); err != nil {
			return err
		}
		for _, raw := range perms {
			perm, err := authz.ParsePermission(raw)
			if err != nil {
				return err
			}
			if _, err := tx.Insert(ctx, authz.RolePermissionsTable, storage.Record{
				"role":     string(role),
				"resource": perm.Resource,
				"action":   perm.Action,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedProfiles(ctx context.Context, tx storage.Store) (map[string]uuid.UUID, error) {
	now := time.Now().UTC()
	depts := map[string]uuid.UUID{}
	for _, name := range []string{"Sales", "Support"} {
		id := uuid.New()
		if _, err := tx.Insert(ctx, entity.Departments.Table, storage.Record{
			"id": id, "name": name, "created_at": now, "updated_at": now,
		}); err != nil {
			return nil, err
		}
		depts[name] = id
	}

	ids := make(map[string]uuid.UUID, len(profiles))
	for _, p := range profiles {
		id := uuid.New()
		rec := storage.Record{
			"id": id, "email": p.email, "full_name": p.name, "role": string(p.role),
			"created_at": now, "updated_at": now,
		}
		if p.dept != "" {
			rec["department_id"] = depts[p.dept]
		}
		if _, err := tx.Insert(ctx, entity.Profiles.Table, rec); err != nil {
			return nil, err
		}
		ids[p.email] = id
	}
	return ids, nil
}

func seedCRM(ctx context.Context, tx storage.Store, ids map[string]uuid.UUID) error {
	now := time.Now().UTC()
	rep := ids["sales.rep@companyos.local"]
	companyID := uuid.New()
	if _, err := tx.Insert(ctx, entity.Companies.Table, storage.Record{
		"id": companyID, "name": "Acme Industrial", "domain": "acme.test",
		"owner_id": rep, "created_by": rep, "created_at": now, "updated_at": now,
	}); err != nil {
		return err
	}
	contactID := uuid.New()
	if _, err := tx.Insert(ctx, entity.Contacts.Table, storage.Record{
		"id": contactID, "first_name": "Jordan", "last_name": "Buyer", "email": "jordan@acme.test",
		"company_id": companyID, "owner_id": rep, "created_by": rep, "created_at": now, "updated_at": now,
	}); err != nil {
		return err
	}
	for i, title := range []string{"Acme warehouse rollout", "Acme pilot renewal"} {
		leadID := uuid.New()
		if _, err := tx.Insert(ctx, entity.Leads.Table, storage.Record{
			"id": leadID, "title": title, "status": "new", "value_cents": int64(250000 * (i + 1)),
			"contact_id": contactID, "company_id": companyID, "owner_id": rep,
			"created_by": rep, "created_at": now, "updated_at": now,
		}); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, entity.Interactions.Table, storage.Record{
			"id": uuid.New(), "lead_id": leadID, "kind": "call", "summary": "Discovery call",
			"occurred_at": now, "created_by": rep, "created_at": now, "updated_at": now,
		}); err != nil {
			return err
		}
	}
	return nil
}
