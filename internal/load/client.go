// Package load bulk-loads an exported graph into Neo4j. It reads the
// CSV tables back rather than taking the in-memory graph, so a load can
// rerun against a past export without repeating resolution.
package load

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/mbarbier/studium/internal/model"
)

// Client wraps the Neo4j driver with the run configuration
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *zap.Logger
}

// NewClient connects and verifies connectivity before returning
func NewClient(cfg model.Neo4jConfig, log *zap.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("load: neo4j uri is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("load: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("load: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: cfg.Database,
		log:      log.With(zap.String("client", "neo4j")),
	}, nil
}

// Close releases the driver
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
