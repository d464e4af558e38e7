package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bet-tracker/internal/config"
	"github.com/dvloznov/bet-tracker/internal/logger"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	projectID     = flag.String("project", "", "GCP project ID (defaults to GCP_PROJECT_ID)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to BQ_DATASET)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	dryRun        = flag.Bool("dry-run", false, "List pending migrations without applying them")
)

func main() {
	flag.Parse()

	log := logger.New()
	ctx := logger.WithContext(context.Background(), log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *projectID == "" {
		*projectID = cfg.GCPProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.BQDataset
	}
	if *projectID == "" {
		log.Fatal().Msg("A GCP project is required: pass -project or set GCP_PROJECT_ID")
	}

	dir, err := resolveMigrationsDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}

	migrations, err := readMigrations(dir, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Str("dir", dir).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	appliedMigrations, err := getAppliedMigrations(ctx, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	pending := pendingMigrations(migrations, appliedMigrations)
	for _, am := range checksumDrift(migrations, appliedMigrations) {
		log.Warn().
			Int("version", am.Version).
			Str("name", am.Name).
			Msg("Applied migration file has changed since it was run")
	}

	if *dryRun {
		for _, m := range pending {
			log.Info().Msgf("  [PENDING] %04d_%s", m.Version, m.Name)
		}
		log.Info().Int("pending", len(pending)).Msg("Dry run complete")
		return
	}

	for _, migration := range pending {
		log.Info().Msgf("  [RUN]  %04d_%s", migration.Version, migration.Name)

		if err := executeMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Msgf("Failed to execute migration %04d_%s", migration.Version, migration.Name)
		}

		if err := recordMigration(ctx, client, migration); err != nil {
			log.Fatal().Err(err).Msgf("Failed to record migration %04d_%s", migration.Version, migration.Name)
		}

		log.Info().Msgf("  [OK]   %04d_%s", migration.Version, migration.Name)
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
}

// resolveMigrationsDir finds dir relative to the working directory, falling
// back to the repository root when run from cmd/migrate.
func resolveMigrationsDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	fallback := filepath.Join("..", "..", dir)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations reads all migration files from dir, sorted by version.
// Files that do not match the naming pattern are skipped.
func readMigrations(dir, project, dataset string) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		// The checksum covers the file before placeholder replacement so
		// the same migration matches across projects.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      sql,
			Checksum: checksum(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

func checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// pendingMigrations returns the migrations whose version has not been applied.
func pendingMigrations(all []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// checksumDrift returns applied migrations whose file content has changed.
func checksumDrift(all []Migration, applied []AppliedMigration) []AppliedMigration {
	byVersion := make(map[int]Migration, len(all))
	for _, m := range all {
		byVersion[m.Version] = m
	}

	var drifted []AppliedMigration
	for _, am := range applied {
		m, ok := byVersion[am.Version]
		if ok && am.Checksum != "" && am.Checksum != m.Checksum {
			drifted = append(drifted, am)
		}
	}
	return drifted
}

func tableName(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", *projectID, *datasetID, table)
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, tableName("schema_migrations"))

	return runQuery(ctx, client.Query(sql))
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, tableName("schema_migrations"))

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// executeMigration executes a single migration SQL
func executeMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	return runQuery(ctx, client.Query(migration.SQL))
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, migration Migration) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, tableName("schema_migrations"))

	query := client.Query(sql)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: *appliedBy},
	}

	return runQuery(ctx, query)
}

func runQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
