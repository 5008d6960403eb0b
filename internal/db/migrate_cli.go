package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]
	migrationsFS := MigrationsFS()

	// Open the database without running schema initialization; the
	// migrations manage the schema.
	database, err := OpenDB(dbPath)
	if err != nil {
		monitoring.Errorf("failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			monitoring.Errorf("migration up failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("all migrations applied")
		printVersion(database)

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			monitoring.Errorf("migration down failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("rolled back one migration")
		printVersion(database)

	case "status":
		version, dirty, err := database.MigrateVersion(migrationsFS)
		if err != nil {
			monitoring.Errorf("failed to get migration status: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Current version: %d\nDirty: %v\n", version, dirty)
		if dirty {
			fmt.Println("WARNING: a migration failed mid-execution; inspect the database and use 'migrate force' to recover")
		}

	case "version":
		if len(args) < 2 {
			monitoring.Errorf("usage: offbyone migrate version <version_number>")
			os.Exit(1)
		}
		version := parseVersionArg(args[1])
		if err := database.MigrateTo(migrationsFS, uint(version)); err != nil {
			monitoring.Errorf("migration to version %d failed: %v", version, err)
			os.Exit(1)
		}
		printVersion(database)

	case "force":
		if len(args) < 2 {
			monitoring.Errorf("usage: offbyone migrate force <version_number>")
			os.Exit(1)
		}
		version := parseVersionArg(args[1])
		if err := database.MigrateForce(migrationsFS, version); err != nil {
			monitoring.Errorf("force migration failed: %v", err)
			os.Exit(1)
		}
		printVersion(database)

	case "baseline":
		if len(args) < 2 {
			monitoring.Errorf("usage: offbyone migrate baseline <version_number>")
			os.Exit(1)
		}
		version := parseVersionArg(args[1])
		if err := database.BaselineAtVersion(version); err != nil {
			monitoring.Errorf("baseline failed: %v", err)
			os.Exit(1)
		}
		monitoring.Logf("baselined at version %d", version)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func parseVersionArg(arg string) int {
	version, err := strconv.Atoi(arg)
	if err != nil || version < 0 {
		monitoring.Errorf("invalid version number: %s", arg)
		os.Exit(1)
	}
	return version
}

func printVersion(database *DB) {
	version, dirty, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		return
	}
	monitoring.Logf("current version: %d (dirty: %v)", version, dirty)
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: offbyone migrate <action> [args]

Actions:
  up                  Apply all pending migrations
  down                Roll back the most recent migration
  status              Show current migration version and dirty state
  version <n>         Migrate up or down to version n
  force <n>           Force the recorded version to n (dirty recovery)
  baseline <n>        Mark an existing database as already at version n
  help                Show this help`)
}
