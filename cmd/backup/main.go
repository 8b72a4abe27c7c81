package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"talkquest/internal/config"
	"talkquest/internal/database"
	"talkquest/internal/logging"
	"talkquest/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: "console"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if _, err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	backupService := service.NewBackupService(db, logger)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, logger, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, logger, backupService, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, logger *zap.Logger, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create output directory", zap.Error(err))
		}
	}

	file, err := os.Create(outputPath)
	if err != nil {
		logger.Fatal("Failed to create backup file", zap.Error(err))
	}
	defer file.Close()

	logger.Info("Exporting database", zap.String("output", outputPath))
	data, err := backupService.Export(ctx, file)
	if err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}

	fileInfo, err := file.Stat()
	if err != nil {
		logger.Fatal("Failed to stat backup file", zap.Error(err))
	}
	logger.Info("Export complete",
		zap.Int("users", len(data.Users)),
		zap.Int("goals", len(data.Goals)),
		zap.Int("events", len(data.Events)),
		zap.Float64("size_mb", float64(fileInfo.Size())/1024/1024),
	)
}

func handleImport(ctx context.Context, logger *zap.Logger, backupService *service.BackupService, inputPath string, clearData bool) {
	file, err := os.Open(inputPath)
	if err != nil {
		logger.Fatal("Failed to open input file", zap.String("input", inputPath), zap.Error(err))
	}
	defer file.Close()

	if clearData {
		fmt.Print("WARNING: This will delete all existing data. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			logger.Info("Import cancelled")
			return
		}

		logger.Info("Clearing existing data")
		if err := backupService.Clear(ctx); err != nil {
			logger.Fatal("Failed to clear database", zap.Error(err))
		}
	}

	logger.Info("Importing database", zap.String("input", inputPath))
	if err := backupService.Import(ctx, file); err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}

	logger.Info("Import complete")
}

func printUsage() {
	fmt.Println("TalkQuest Ledger Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export ledger data to a JSON file")
	fmt.Println("  backup import [options]    Import ledger data from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./talkquest.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  JWT_SECRET       Required by the shared configuration loader")
}
