package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/gst-tracker/internal/invoice"
	"github.com/zombor/gst-tracker/internal/ledger"
	"github.com/zombor/gst-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port          int
	dbPath        string
	store         string
	storagePath   string
	recognizer    string
	mode          string
	pdfTextFirst  bool
	firstLine     bool
	geminiKey     string
	geminiModel   string
	ollamaURL     string
	ollamaModel   string
	openAIKey     string
	openAIURL     string
	openAIModel   string
	freeTierLimit int
	authUser      string
	authPass      string
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("gst-tracker")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "gst-tracker.db", "Database file path")
		store         = fs.StringLong("store", "bolt", "Ledger store: 'bolt' or 'sqlite'")
		storagePath   = fs.StringLong("storage", "./invoices", "Directory for uploaded invoice files")
		recognizer    = fs.StringLong("recognizer", "gemini", "Recognizer: 'gemini', 'ollama', 'openai' or 'pdftext'")
		mode          = fs.StringLong("mode", "text", "Recognition mode: 'text' (transcribe and extract) or 'structured' (model returns fields)")
		pdfTextFirst  = fs.BoolLong("pdf-text-first", "Read the PDF text layer before calling the vision recognizer")
		firstLine     = fs.BoolLong("first-line-vendor", "Fall back to the first line of text when no vendor label is found")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		openAIKey     = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openAIURL     = fs.StringLong("openai-url", "", "OpenAI-compatible base URL (empty for api.openai.com)")
		openAIModel   = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		freeTierLimit = fs.IntLong("free-tier-limit", 0, "Maximum invoices per tenant (0 for unlimited)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("GST_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config{
		port:          *port,
		dbPath:        *dbPath,
		store:         *store,
		storagePath:   *storagePath,
		recognizer:    *recognizer,
		mode:          *mode,
		pdfTextFirst:  *pdfTextFirst,
		firstLine:     *firstLine,
		geminiKey:     *geminiKey,
		geminiModel:   *geminiModel,
		ollamaURL:     *ollamaURL,
		ollamaModel:   *ollamaModel,
		openAIKey:     *openAIKey,
		openAIURL:     *openAIURL,
		openAIModel:   *openAIModel,
		freeTierLimit: *freeTierLimit,
		authUser:      *authUser,
		authPass:      *authPass,
	}
	if err := run(cfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg config) (ledger.DB, error) {
	switch cfg.store {
	case "bolt":
		return ledger.NewBoltDB(cfg.dbPath)
	case "sqlite":
		return ledger.NewSQLiteDB(cfg.dbPath)
	}
	return nil, fmt.Errorf("invalid store %q: want bolt or sqlite", cfg.store)
}

func newRecognizer(cfg config) (scanning.Recognizer, error) {
	mode, err := scanning.ParseMode(cfg.mode)
	if err != nil {
		return nil, err
	}

	var vision scanning.Recognizer
	switch cfg.recognizer {
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini recognizer...", "model", cfg.geminiModel, "mode", mode)
		vision, err = scanning.NewGemini(apiKey, cfg.geminiModel, mode)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", cfg.ollamaURL, "model", cfg.ollamaModel, "mode", mode)
		vision = scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel, mode)
	case "openai":
		apiKey := cfg.openAIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI recognizer...", "url", cfg.openAIURL, "model", cfg.openAIModel, "mode", mode)
		vision, err = scanning.NewOpenAI(apiKey, cfg.openAIURL, cfg.openAIModel, mode)
	case "pdftext":
		slog.Info("Initializing PDF text recognizer...")
		return scanning.NewPDFText(), nil
	default:
		return nil, fmt.Errorf("invalid recognizer %q: want gemini, ollama, openai or pdftext", cfg.recognizer)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s: %w", cfg.recognizer, err)
	}

	if cfg.pdfTextFirst {
		return scanning.NewChain(scanning.NewPDFText(), vision), nil
	}
	return vision, nil
}

func run(cfg config) error {
	slog.Info("Initializing database...", "store", cfg.store, "path", cfg.dbPath)
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return err
	}
	defer recognizer.Close()

	slog.Info("Initializing storage...", "path", cfg.storagePath)
	storage, err := ledger.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var extractorOpts []invoice.Option
	if cfg.firstLine {
		extractorOpts = append(extractorOpts, invoice.WithFirstLineVendor())
	}
	service := ledger.NewService(db, recognizer, storage,
		ledger.WithFreeTierLimit(cfg.freeTierLimit),
		ledger.WithExtractor(invoice.NewExtractor(extractorOpts...)),
	)

	server := ledger.NewServer(service, ledger.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	})

	addr := fmt.Sprintf(":%d", cfg.port)
	errs := make(chan error, 1)
	go func() {
		errs <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}
	if cfg.freeTierLimit > 0 {
		slog.Info("Free-tier limit enabled", "invoices_per_tenant", cfg.freeTierLimit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errs:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
