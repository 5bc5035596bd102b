// session-export writes a recorded sync session out of the sqlite store
// as CSV for offline analysis.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/inertial.report/internal/db"
	"github.com/banshee-data/inertial.report/internal/export"
	"github.com/banshee-data/inertial.report/internal/version"
)

var (
	dbPath    = flag.String("db", "synced_measurements.db", "Recording database path")
	sessionID = flag.String("session", "", "Session ID to export (required)")
	outPath   = flag.String("out", "", "Output CSV path (default session_<id>.csv)")
	showVer   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("session-export", version.String())
		return
	}
	if *sessionID == "" {
		log.Fatal("missing required -session flag")
	}

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", *dbPath, err)
	}
	defer store.Close()

	path := *outPath
	if path == "" {
		path = export.DefaultFilename(*sessionID)
	}

	e := export.NewSessionExporter(store, nil)
	n, err := e.WriteCSV(*sessionID, path)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	fmt.Printf("wrote %d tuples to %s\n", n, path)
}
