package startup

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"illust-packer/internal/database"
	"illust-packer/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all run configuration
type Config struct {
	SourceDir       string
	BlobPath        string
	DatabasePath    string
	BatchSize       int
	TargetSize      int
	KeyMode         database.KeyMode
	Recursive       bool
	ConsumeSidecars bool
	SkipArchive     bool
	Workers         int
	MetricsEnabled  bool
	MetricsPort     int
}

// LoadConfig parses flags (with environment fallbacks for the long-lived
// knobs) and validates the run configuration. args is the command line
// without the program name.
func LoadConfig(args []string) (*Config, error) {
	printBanner()
	logSystemInfo()

	fs := flag.NewFlagSet("illust-packer", flag.ContinueOnError)
	sourceDir := fs.String("source", getEnv("SOURCE_DIR", "./images"), "directory scanned for source images")
	blobPath := fs.String("blob", getEnv("BLOB_PATH", "illusts.bolt"), "path of the image blob store")
	dbPath := fs.String("db", getEnv("DATABASE_PATH", "illusts.db"), "path of the metadata database")
	batchSize := fs.Int("batch-size", getEnvInt("BATCH_SIZE", 32), "items committed per transaction pair")
	targetSize := fs.Int("size", getEnvInt("TARGET_SIZE", 512), "square output dimension in pixels")
	keyMode := fs.String("key-mode", getEnv("KEY_MODE", string(database.KeyFilename)), "illusts primary key: filename or id")
	recursive := fs.Bool("recursive", getEnvBool("RECURSIVE", false), "scan the source tree recursively")
	consumeSidecars := fs.Bool("consume-sidecars", false, "delete sidecars along with reclaimed images")
	skipArchive := fs.Bool("skip-archive", false, "skip the final sidecar archive sweep")
	workersFlag := fs.Int("workers", 0, "transform worker count (0 = CPU count)")
	metricsEnabled := fs.Bool("metrics", getEnvBool("METRICS_ENABLED", false), "serve Prometheus metrics during the run")
	metricsPort := fs.Int("metrics-port", getEnvInt("METRICS_PORT", 9090), "metrics listener port")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  SOURCE:            %s", *sourceDir)
	logging.Info("  BLOB:              %s", *blobPath)
	logging.Info("  DB:                %s", *dbPath)
	logging.Info("  BATCH_SIZE:        %d", *batchSize)
	logging.Info("  TARGET_SIZE:       %d", *targetSize)
	logging.Info("  KEY_MODE:          %s", *keyMode)
	logging.Info("  RECURSIVE:         %v", *recursive)
	logging.Info("  CONSUME_SIDECARS:  %v", *consumeSidecars)
	logging.Info("  SKIP_ARCHIVE:      %v", *skipArchive)
	logging.Info("  METRICS:           %v", *metricsEnabled)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	if *batchSize < 1 {
		logging.Warn("  Invalid batch size %d, using default: 32", *batchSize)
		*batchSize = 32
	}
	if *targetSize < 1 {
		logging.Warn("  Invalid target size %d, using default: 512", *targetSize)
		*targetSize = 512
	}

	km := database.KeyMode(*keyMode)
	if !km.Valid() {
		return nil, fmt.Errorf("invalid key mode %q (want filename or id)", *keyMode)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	absSource, err := filepath.Abs(*sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory path: %w", err)
	}
	logging.Info("  Source directory (absolute): %s", absSource)

	info, err := os.Stat(absSource)
	if err != nil {
		return nil, fmt.Errorf("source directory error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", absSource)
	}

	absBlob, err := filepath.Abs(*blobPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob store path: %w", err)
	}
	absDB, err := filepath.Abs(*dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	// Both stores need a writable parent before a single item is
	// transformed; failing here is cheaper than failing at first commit.
	for _, dir := range []string{filepath.Dir(absBlob), filepath.Dir(absDB)} {
		if err := ensureDirectory(dir); err != nil {
			return nil, fmt.Errorf("store directory error: %w", err)
		}
		if err := testWriteAccess(dir); err != nil {
			return nil, fmt.Errorf("store directory %s is not writable: %w", dir, err)
		}
	}
	logging.Info("  [OK] Store directories are writable")

	return &Config{
		SourceDir:       absSource,
		BlobPath:        absBlob,
		DatabasePath:    absDB,
		BatchSize:       *batchSize,
		TargetSize:      *targetSize,
		KeyMode:         km,
		Recursive:       *recursive,
		ConsumeSidecars: *consumeSidecars,
		SkipArchive:     *skipArchive,
		Workers:         *workersFlag,
		MetricsEnabled:  *metricsEnabled,
		MetricsPort:     *metricsPort,
	}, nil
}

// LogStoresInit logs store initialization
func LogStoresInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Stores initialized in %v", duration)
}

// LogIngestStart logs the beginning of the ingest pass
func LogIngestStart(sourceDir string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INGEST")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Scanning %s", sourceDir)
}

// LogArchiveStart logs the beginning of the sidecar archive sweep
func LogArchiveStart() {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SIDECAR ARCHIVE")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
	logging.Info("  Finishing the open batch before exiting...")
}

// LogRunComplete logs run completion
func LogRunComplete(duration time.Duration) {
	logging.Info("")
	logging.Info("  [OK] Run complete in %v", duration)
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ________           __     ____             __
   /  _/ / /_  _______/ /_   / __ \____ _____ / /_____  _____
   / // / / / / / ___/ __/  / /_/ / __ '/ ___/ //_/ _ \/ ___/
 _/ // / / /_/ (__  ) /_   / ____/ /_/ / /__/ ,< /  __/ /
/___/_/_/\__,_/____/\__/  /_/    \__,_/\___/_/|_|\___/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	logging.Info("")
}

func ensureDirectory(path string) error {
	logging.Debug("  Checking directory: %s", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path %s exists but is not a directory", path)
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
