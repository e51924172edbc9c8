package repositories

import "embed"

//go:embed migrations/*.sql
var migrationsFS embed.FS

func readMigrations() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var statements []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		b, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, err
		}
		statements = append(statements, string(b))
	}

	return statements, nil
}
