package migration

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/migration/migrations"
	"github.com/luminagoods/site/src/migration/types"
	"github.com/luminagoods/site/src/oops"
	"github.com/spf13/cobra"
)

// Commands returns the migrate and makemigration commands for the root command.
func Commands() []*cobra.Command {
	var listMigrations bool

	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conn, err := db.NewConn(ctx)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			if listMigrations {
				ListMigrations(ctx, conn, cmd.OutOrStdout())
				return nil
			}

			targetVersion := time.Time{}
			if len(args) > 0 {
				targetVersion, err = time.Parse(time.RFC3339, args[0])
				if err != nil {
					return oops.New(err, "bad version string")
				}
			}
			return Migrate(ctx, conn, types.MigrationVersion(targetVersion), cmd.OutOrStdout())
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := MakeMigration(args[0], strings.Join(args[1:], " "), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully created migration file:")
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	return []*cobra.Command{migrateCommand, makeMigrationCommand}
}

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func getCurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	currentVersion, err := db.QueryOneScalar[time.Time](ctx, conn, "SELECT version FROM site_migration")
	if err != nil {
		return types.MigrationVersion{}, err
	}
	return types.MigrationVersion(currentVersion.UTC()), nil
}

func ListMigrations(ctx context.Context, conn db.ConnOrTx, out io.Writer) {
	currentVersion, _ := getCurrentVersion(ctx, conn)
	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Fprintf(out, "%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
}

/*
Migrate rolls the database forward or back to targetVersion, one migration per
transaction. A zero targetVersion means the latest migration.
*/
func Migrate(ctx context.Context, conn db.ConnOrTx, targetVersion types.MigrationVersion, out io.Writer) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS site_migration (
			version TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return oops.New(err, "failed to create migration table")
	}

	numRows, err := db.QueryOneScalar[int64](ctx, conn, "SELECT count(*) FROM site_migration")
	if err != nil {
		return oops.New(err, "failed to count migration rows")
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO site_migration (version) VALUES ($1)", time.Time{})
		if err != nil {
			return oops.New(err, "failed to insert initial migration row")
		}
	}

	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		return oops.New(err, "failed to get current version")
	}
	if currentVersion.IsZero() {
		fmt.Fprintln(out, "This is the first time you have run database migrations.")
	} else {
		fmt.Fprintf(out, "Current version: %s\n", currentVersion.String())
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex := -1
	targetIndex := -1
	for i, version := range allVersions {
		if currentVersion.Equal(version) {
			currentIndex = i
		}
		if targetVersion.Equal(version) {
			targetIndex = i
		}
	}
	if targetIndex < 0 {
		return oops.New(nil, "could not find migration with version %v", targetVersion)
	}

	if currentIndex < targetIndex {
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			fmt.Fprintf(out, "Applying migration %v (%v)\n", version, migration.Name())

			err := db.Tx(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Up(ctx, tx); err != nil {
					return oops.New(err, "migration %v failed", version)
				}
				_, err := tx.Exec(ctx, "UPDATE site_migration SET version = $1", time.Time(version))
				return err
			})
			if err != nil {
				return err
			}
		}
	} else if currentIndex > targetIndex {
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}

			fmt.Fprintf(out, "Rolling back migration %v\n", version)
			migration := migrations.All[version]
			err := db.Tx(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Down(ctx, tx); err != nil {
					return oops.New(err, "rollback of %v failed", version)
				}
				_, err := tx.Exec(ctx, "UPDATE site_migration SET version = $1", time.Time(previousVersion))
				return err
			})
			if err != nil {
				return err
			}
		}
	} else {
		fmt.Fprintln(out, "Already migrated; nothing to do.")
	}

	return nil
}

//go:embed migrationTemplate.txt
var migrationTemplate string

// MakeMigration writes a new migration file stamped with now and returns its path.
func MakeMigration(name, description string, now time.Time) (string, error) {
	now = now.UTC()
	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join("src", "migration", "migrations", filename)

	if err := os.WriteFile(path, []byte(renderMigration(name, description, now)), 0644); err != nil {
		return "", oops.New(err, "failed to write migration file")
	}
	return path, nil
}

func renderMigration(name, description string, now time.Time) string {
	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())

	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)
	return result
}
