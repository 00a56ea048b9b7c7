package database

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"loomgraph/internal/config"
	"loomgraph/internal/logger"
)

// Connect builds the Neo4j driver and verifies connectivity.
// The caller owns the driver and must Close it on shutdown.
func Connect(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	logger.Get().Info("Connected to Neo4j", zap.String("uri", cfg.Neo4jURI))
	return driver, nil
}

// schemaStatements are idempotent, safe to run on every boot.
var schemaStatements = []string{
	"CREATE CONSTRAINT user_uid_unique IF NOT EXISTS FOR (u:User) REQUIRE u.uid IS UNIQUE",
	"CREATE CONSTRAINT user_username_unique IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE",
	"CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE",
	"CREATE CONSTRAINT post_uid_unique IF NOT EXISTS FOR (p:Post) REQUIRE p.uid IS UNIQUE",
	"CREATE CONSTRAINT comment_uid_unique IF NOT EXISTS FOR (c:Comment) REQUIRE c.uid IS UNIQUE",
	"CREATE CONSTRAINT group_uid_unique IF NOT EXISTS FOR (g:Group) REQUIRE g.uid IS UNIQUE",
	"CREATE CONSTRAINT group_name_unique IF NOT EXISTS FOR (g:Group) REQUIRE g.name IS UNIQUE",
	"CREATE CONSTRAINT hashtag_uid_unique IF NOT EXISTS FOR (h:Hashtag) REQUIRE h.uid IS UNIQUE",
	"CREATE CONSTRAINT hashtag_name_unique IF NOT EXISTS FOR (h:Hashtag) REQUIRE h.name IS UNIQUE",
	"CREATE CONSTRAINT notification_uid_unique IF NOT EXISTS FOR (n:Notification) REQUIRE n.uid IS UNIQUE",
	"CREATE INDEX post_created_at IF NOT EXISTS FOR (p:Post) ON (p.created_at)",
	"CREATE INDEX comment_created_at IF NOT EXISTS FOR (c:Comment) ON (c.created_at)",
	"CREATE INDEX notification_created_at IF NOT EXISTS FOR (n:Notification) ON (n.created_at)",
}

// EnsureSchema creates the uniqueness constraints and indexes the
// application relies on. Uniqueness violations surface as
// Neo4jError constraint failures on create.
func EnsureSchema(ctx context.Context, driver neo4j.DriverWithContext) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	logger.Get().Info("Neo4j schema constraints ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}
