// Command aqlserver serves a store of test results that can be filtered with
// AQL over HTTP.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nlstn/go-aql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// Parse command-line flags
	dbType := flag.String("db", "sqlite", "Database type: sqlite or postgres")
	dbDSN := flag.String("dsn", "", "Database DSN (connection string). For postgres, use postgresql://... format. For sqlite, use file path or :memory:")
	port := flag.String("port", "9092", "Port to listen on")
	seed := flag.Int("seed", 500, "Number of sample results to seed (0 keeps existing data)")
	allowFields := flag.String("allow-fields", "", "Comma-separated list of fields queries may reference (empty allows all)")
	serverTiming := flag.Bool("server-timing", false, "Add parse, filter and database durations to the Server-Timing header")
	verbose := flag.Bool("verbose", false, "Log accepted queries at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	db, err := openDatabase(*dbType, *dbDSN)
	if err != nil {
		log.Fatal(err)
	}

	if *seed > 0 {
		fmt.Println("🌱 Seeding database...")
		start := time.Now()
		if err := seedDatabase(db, *seed); err != nil {
			log.Fatal("Failed to seed database:", err)
		}
		fmt.Printf("✅ Seeded %d results in %.2f seconds\n", *seed, time.Since(start).Seconds())
	} else if err := db.AutoMigrate(&TestResult{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	engine, err := aql.NewEngine(
		aql.WithLogger(logger),
		aql.WithObservability(aql.ObservabilityConfig{
			ServiceName:        "aqlserver",
			EnableServerTiming: *serverTiming,
		}),
	)
	if err != nil {
		log.Fatal("Failed to create AQL engine:", err)
	}
	if err := engine.InstrumentDB(db); err != nil {
		log.Fatal("Failed to instrument database:", err)
	}

	srv := newServer(db, engine, parserConfig(*allowFields), logger)

	fmt.Println("🚀 AQL server starting...")
	fmt.Println("Endpoints:")
	fmt.Printf("  Results (in memory):  http://localhost:%s/api/results?aql=status%%20=%%20%%22failed%%22\n", *port)
	fmt.Printf("  Results (SQL):        http://localhost:%s/api/results?mode=sql&aql=duration%%20%%3E%%205000\n", *port)
	fmt.Printf("  Canonical query:      POST http://localhost:%s/api/query (body: {\"query\": \"...\"})\n", *port)
	fmt.Println()

	server := &http.Server{
		Addr:              ":" + *port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Server failed:", err)
	}
}

func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	switch dbType {
	case "sqlite":
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
		}
		fmt.Println("📦 Using SQLite database:", dsn)
		return db, nil

	case "postgres":
		if dsn == "" {
			// Check for environment variable as fallback
			dsn = os.Getenv("DATABASE_URL")
			if dsn == "" {
				return nil, fmt.Errorf("PostgreSQL DSN required. Use -dsn flag or set DATABASE_URL environment variable")
			}
		}
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
		}
		fmt.Println("🐘 Using PostgreSQL database")
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s. Use 'sqlite' or 'postgres'", dbType)
	}
}

// parserConfig restricts queries to the given comma-separated fields.
// An empty list leaves the language unrestricted.
func parserConfig(allowFields string) *aql.ParserConfig {
	if strings.TrimSpace(allowFields) == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(allowFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return &aql.ParserConfig{Identifiers: fields}
}
