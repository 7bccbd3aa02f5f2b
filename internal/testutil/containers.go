// Package testutil starts the database and redis containers used by integration
// tests and by the standalone cmd/testcontainers runner.
// Image and credential settings come from the environment, usually a .env file.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/localnerve/jam-build-intakedb/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	defaultMariaDBImage  = "mariadb:11"
	defaultRedisImage    = "redis:7-alpine"
)

// TestContainers holds everything CreateTestContainers started.
type TestContainers struct {
	Network        *testcontainers.DockerNetwork
	DBContainer    testcontainers.Container
	RedisContainer testcontainers.Container

	// Config points at the mapped host ports of the containers
	Config *config.Config
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RedisContainer != nil {
		if err := tc.RedisContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Redis: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Database: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CreateTestContainers starts a database of DB_TYPE (postgres or mariadb) and a redis.
// With a nil t, failures print and exit so the runner can be used outside go test.
func CreateTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	tc := &TestContainers{}

	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
		return nil, err
	}
	tc.Network = nw

	dbType := getenv("DB_TYPE", "postgres")
	dbName := getenv("DB_DATABASE", "intakedb")
	dbUser := getenv("DB_USER", "intakedb")
	dbPassword := getenv("DB_PASSWORD", "intakedb")

	var (
		image    string
		portSpec string
		env      map[string]string
		ready    wait.Strategy
	)
	switch dbType {
	case "postgres":
		image = getenv("DB_IMAGE", defaultPostgresImage)
		portSpec = "5432"
		env = map[string]string{
			"POSTGRES_DB":       dbName,
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
		}
		ready = wait.ForLog("database system is ready to accept connections").WithOccurrence(2)
	case "mysql", "mariadb":
		image = getenv("DB_IMAGE", defaultMariaDBImage)
		portSpec = "3306"
		env = map[string]string{
			"MYSQL_ROOT_PASSWORD": getenv("DB_ROOT_PASSWORD", dbPassword),
			"MYSQL_DATABASE":      dbName,
			"MYSQL_USER":          dbUser,
			"MYSQL_PASSWORD":      dbPassword,
		}
		ready = wait.ForLog("ready for connections")
	default:
		err := fmt.Errorf("unsupported DB_TYPE %q for containers", dbType)
		tc.Terminate(t)
		exitWithError(t, err, "Failed to choose database image")
		return nil, err
	}

	dbPort, err := nat.NewPort("tcp", portSpec)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to create DB port")
		return nil, err
	}
	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(dbPort)},
			Env:          env,
			WaitingFor: wait.ForAll(
				ready,
				wait.ForListeningPort(dbPort),
			).WithDeadline(90 * time.Second),
			Networks: []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {"db"},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start Database")
		return nil, err
	}
	tc.DBContainer = dbContainer

	redisPort, err := nat.NewPort("tcp", "6379")
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to create Redis port")
		return nil, err
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        getenv("REDIS_IMAGE", defaultRedisImage),
			ExposedPorts: []string{string(redisPort)},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			Networks:     []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {"redis"},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start Redis")
		return nil, err
	}
	tc.RedisContainer = redisContainer

	dbHost, err := dbContainer.Host(ctx)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to get database host")
		return nil, err
	}
	mappedDB, err := dbContainer.MappedPort(ctx, dbPort)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to get database port")
		return nil, err
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to get redis host")
		return nil, err
	}
	mappedRedis, err := redisContainer.MappedPort(ctx, redisPort)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to get redis port")
		return nil, err
	}

	tc.Config = &config.Config{
		DBType:            dbType,
		DBHost:            dbHost,
		DBPort:            mappedDB.Port(),
		DBDatabase:        dbName,
		DBUser:            dbUser,
		DBPassword:        dbPassword,
		DBConnectionLimit: 5,
		DBLogLevel:        "warn",
		RedisURL:          fmt.Sprintf("redis://%s:%s/0", redisHost, mappedRedis.Port()),
		IdempotencyTTL:    time.Hour,
	}

	logMessage(t, "DB_HOST=%s DB_PORT=%s", dbHost, mappedDB.Port())
	logMessage(t, "REDIS_URL=%s", tc.Config.RedisURL)
	return tc, nil
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
