package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"recipebox/internal/catalog"
	"recipebox/internal/config"
	"recipebox/internal/narrator"
	"recipebox/internal/telemetry"
	"recipebox/internal/templates"
)

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	var (
		serve      bool
		addr       string
		categories bool
		recipeID   int
		favs       bool
		toggleID   int
		apiKey     string
		readID     int
		help       bool
	)

	flag.BoolVar(&serve, "serve", false, "Run HTTP server mode")
	flag.StringVar(&addr, "addr", ":8080", "Address to bind in server mode")
	flag.BoolVar(&categories, "categories", false, "Load and print every category with the stored key")
	flag.IntVar(&recipeID, "recipe", 0, "Print a recipe by id")
	flag.IntVar(&recipeID, "r", 0, "Print a recipe by id (short form)")
	flag.BoolVar(&favs, "favorites", false, "List favorites")
	flag.IntVar(&toggleID, "toggle", 0, "Add or remove a recipe id from favorites")
	flag.StringVar(&apiKey, "key", "", "Validate and store a Spoonacular API key, then print categories")
	flag.IntVar(&readID, "read", 0, "Read a recipe aloud by id")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		showHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to set up telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetry.FlushTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	if err := templates.Init(); err != nil {
		log.Fatalf("failed to parse templates: %v", err)
	}

	if err := run(ctx, cfg, mode{serve, addr, categories, recipeID, favs, toggleID, apiKey, readID}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = 1
	}
}

type mode struct {
	serve      bool
	addr       string
	categories bool
	recipeID   int
	favorites  bool
	toggleID   int
	apiKey     string
	readID     int
}

func run(ctx context.Context, cfg *config.Config, m mode) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case m.serve:
		return runServer(ctx, a, m.addr)
	case m.apiKey != "":
		return a.submitKey(ctx, m.apiKey)
	case m.categories:
		return a.printCategories(ctx)
	case m.recipeID != 0:
		return a.printRecipe(ctx, m.recipeID)
	case m.favorites:
		return a.printFavorites(ctx)
	case m.toggleID != 0:
		return a.toggle(ctx, m.toggleID)
	case m.readID != 0:
		return a.read(ctx, m.readID)
	default:
		showHelp()
		return errors.New("no mode selected")
	}
}

func (a *app) submitKey(ctx context.Context, key string) error {
	if err := a.loader.SubmitKey(ctx, key); err != nil {
		return fmt.Errorf("%s: %w", catalog.Describe(err), err)
	}
	fmt.Println("API key saved.")
	printSections(a.loader.Snapshot())
	return nil
}

func (a *app) printCategories(ctx context.Context) error {
	if err := a.loader.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", catalog.Describe(err), err)
	}
	snap := a.loader.Snapshot()
	if snap.State != catalog.Loaded {
		return errNeedsKey
	}
	printSections(snap)
	return nil
}

func printSections(snap catalog.Snapshot) {
	if snap.Result == nil {
		return
	}
	for _, s := range snap.Result.Sections {
		fmt.Printf("%s\n", strings.ToUpper(s.Label))
		if len(s.Recipes) == 0 {
			fmt.Println("  (none)")
		}
		for _, r := range s.Recipes {
			fmt.Printf("  %-8d %s\n", r.ID, r.Title)
		}
	}
}

func (a *app) printRecipe(ctx context.Context, id int) error {
	d, err := a.recipes.Detail(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d)\n", d.Title, d.ID)
	if d.ReadyInMinutes > 0 {
		fmt.Printf("Ready in %d minutes, serves %d\n", d.ReadyInMinutes, d.Servings)
	}
	fmt.Println()
	fmt.Println(narrator.Script(d))
	return nil
}

func (a *app) printFavorites(ctx context.Context) error {
	list, err := a.favorites.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No favorites yet.")
	}
	for _, r := range list {
		fmt.Printf("%-8d %s\n", r.ID, r.Title)
	}
	return nil
}

func (a *app) toggle(ctx context.Context, id int) error {
	d, err := a.recipes.Detail(ctx, id)
	if err != nil {
		return err
	}
	summary := d.Brief()
	_, direction, err := a.favorites.Toggle(ctx, summary)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", direction, summary.Title)
	return nil
}

// read speaks in the foreground; interrupting stops it.
func (a *app) read(ctx context.Context, id int) error {
	d, err := a.recipes.Detail(ctx, id)
	if err != nil {
		return err
	}
	err = a.speaker.Speak(ctx, narrator.Script(d), narrator.Options{Language: a.cfg.Speech.Language, Rate: a.cfg.Speech.Rate})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func showHelp() {
	fmt.Println("recipebox - browse Spoonacular recipes, keep favorites, listen to them")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recipebox -serve [-addr :8080]")
	fmt.Println("  recipebox -key <spoonacular api key>")
	fmt.Println("  recipebox -categories")
	fmt.Println("  recipebox -recipe <id>")
	fmt.Println("  recipebox -favorites")
	fmt.Println("  recipebox -toggle <id>")
	fmt.Println("  recipebox -read <id>")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  STORAGE_BACKEND       file (default), memory, sqlite, redis, blob")
	fmt.Println("  SPEECH_SPEAKER        log (default), command, openai")
	fmt.Println("  MOCKS                 true to use canned recipes and no network")
}
