package service

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/tradepost/tradepost/auth"
	"github.com/tradepost/tradepost/id"
	"github.com/tradepost/tradepost/postgres"
	"github.com/tradepost/tradepost/postgres/migrator"
	"github.com/tradepost/tradepost/types"
)

var (
	testDB       *pgxpool.Pool
	testPostgres *postgres.Postgres
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	var skipIntegration bool
	flag.BoolVar(&skipIntegration, "skip-integration", false, "Skip integration tests docker setup")
	flag.Parse()

	if skipIntegration || testing.Short() {
		return m.Run()
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Printf("could not create docker pool: %v\n", err)
		return 1
	}

	var cleanup func() error
	testDB, cleanup, err = setupTestDB(pool)
	if err != nil {
		fmt.Printf("could not setup test db: %v\n", err)
		return 1
	}
	testPostgres = postgres.New(testDB)

	if err := migrator.Migrate(context.Background(), testDB, postgres.MigrationsFS); err != nil {
		fmt.Printf("could not run migrations: %v\n", err)
		return 1
	}

	defer func() {
		if err := cleanup(); err != nil {
			fmt.Printf("could not cleanup postgres container: %v\n", err)
		}
	}()

	return m.Run()
}

func setupTestDB(pool *dockertest.Pool) (*pgxpool.Pool, func() error, error) {
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_HOST_AUTH_METHOD=trust",
			"POSTGRES_DB=tradepost",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create postgres resource: %w", err)
	}

	var db *pgxpool.Pool
	err = pool.Retry(func() (err error) {
		hostPort := resource.GetHostPort("5432/tcp")
		db, err = pgxpool.New(context.Background(), "postgresql://postgres@"+hostPort+"/tradepost?sslmode=disable")
		if err != nil {
			return fmt.Errorf("could not open db: %w", err)
		}

		// do not close db

		if err = db.Ping(context.Background()); err != nil {
			return fmt.Errorf("could not ping db: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return db, func() error {
		return pool.Purge(resource)
	}, nil
}

const defaultConfirmWindow = time.Hour * 24

func newTestService(t *testing.T, confirmWindow time.Duration) *Service {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	return New(&Config{
		Postgres: testPostgres,

		BaseCtx:           context.Background(),
		BackgroundTimeout: time.Second * 5,
		PairLockWait:      time.Second * 2,
		ConfirmWindow:     confirmWindow,
		SweepInterval:     time.Minute,
		MessageBucket:     "test-message-images",
	})
}

func createTestUser(t *testing.T, svc *Service) types.User {
	t.Helper()

	ctx := context.Background()
	username := "u" + strings.ToLower(id.Generate())

	created, err := svc.CreateUser(ctx, username)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}

	return types.User{ID: created.ID, Username: username}
}

func createTestItem(t *testing.T, svc *Service, seller types.User, title string, price int64) types.Item {
	t.Helper()

	ctx := auth.ContextWithUser(context.Background(), seller)

	created, err := svc.CreateItem(ctx, title, price)
	if err != nil {
		t.Fatalf("create test item: %v", err)
	}

	item, err := svc.Item(ctx, created.ID)
	if err != nil {
		t.Fatalf("fetch test item: %v", err)
	}

	return item
}

func asUser(u types.User) context.Context {
	return auth.ContextWithUser(context.Background(), u)
}

func proposeTestSchedule(t *testing.T, svc *Service, seller types.User, conversationID, itemID string) types.ScheduledPurchase {
	t.Helper()

	price := int64(10000)
	sched, err := svc.ProposeSchedule(asUser(seller), types.ProposeSchedule{
		ConversationID: conversationID,
		ItemID:         itemID,
		MeetingAt:      time.Now().Add(time.Hour * 48),
		Location:       "Central station",
		Price:          &price,
	})
	if err != nil {
		t.Fatalf("propose schedule: %v", err)
	}

	return sched
}
