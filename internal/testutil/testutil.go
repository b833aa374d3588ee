// Package testutil provides MongoDB-backed test harness helpers.
//
// Store and engine tests are integration tests against a real MongoDB.
// SetupTestDB connects using WARDEN_TEST_MONGO_URI and skips the test when
// it is unset, so the suite still passes on machines without a database.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/convokit/warden/internal/app/system/indexes"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// EnvMongoURI names the environment variable holding the test MongoDB URI,
// e.g. "mongodb://localhost:27017".
const EnvMongoURI = "WARDEN_TEST_MONGO_URI"

// SetupTestDB connects to the test MongoDB and returns a database unique to
// this test, with all indexes created. The database is dropped and the
// client disconnected when the test finishes. The test is skipped when
// WARDEN_TEST_MONGO_URI is unset.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv(EnvMongoURI)
	if uri == "" {
		t.Skipf("%s not set; skipping MongoDB integration test", EnvMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo connect failed: %v", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		t.Fatalf("mongo ping failed: %v", err)
	}

	// Hyphens are not valid in database names.
	name := "warden_test_" + uuid.New().String()[:8]
	db := client.Database(name)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("dropping test database %s failed: %v", name, err)
		}
		_ = client.Disconnect(ctx)
	})

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensuring indexes failed: %v", err)
	}
	return db
}

// TestContext returns a context with a generous deadline for one test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
