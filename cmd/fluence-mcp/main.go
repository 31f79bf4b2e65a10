package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/fluence-tools-mcp/internal/config"
	"github.com/ironsheep/fluence-tools-mcp/internal/delivery"
	"github.com/ironsheep/fluence-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("fluence-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("fluence-tools-mcp - MCP server converting images into optimal fluence matrices")
			fmt.Println()
			fmt.Println("Usage: fluence-tools-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v          Print version information")
			fmt.Println("  --help, -h             Print this help message")
			fmt.Println("  --config <file>        YAML configuration (defaults apply when absent)")
			fmt.Println("  --drop-folder <dir>    Planning system drop folder; overrides delivery.dropFolder")
			fmt.Println("  --write-config <file>  Write the default configuration and exit")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  FLUENCE_MCP_LOG_LEVEL=debug    Enable debug logging")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	configPath := flag.String("config", "fluence.yaml", "YAML configuration file")
	dropFolder := flag.String("drop-folder", "", "Planning system drop folder")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Default configuration written to %s\n", *writeConfig)
		return
	}

	debug := os.Getenv("FLUENCE_MCP_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("Fluence MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if *dropFolder != "" {
		cfg.Delivery.DropFolder = *dropFolder
	}

	opts := []server.Option{server.WithDebug(debug)}
	if cfg.Delivery.DropFolder != "" {
		folder, err := delivery.NewDropFolder(cfg.Delivery.DropFolder, cfg.WriteOptions())
		if err != nil {
			log.Fatalf("Delivery error: %v", err)
		}
		opts = append(opts, server.WithSystem(folder))
		if debug {
			log.Printf("Pushing fluence to drop folder %s", cfg.Delivery.DropFolder)
		}
	}

	srv := server.New(cfg, opts...)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
