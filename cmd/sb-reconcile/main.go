// sb-reconcile runs the maintenance jobs against a signalboard database from
// the command line: cluster label refresh, title-based merge, recount, and
// on-demand digest generation.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalboard/signalboard/internal/config"
	"github.com/signalboard/signalboard/internal/digest"
	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/llm"
	"github.com/signalboard/signalboard/internal/reconcile"
	"github.com/signalboard/signalboard/internal/store"
)

func main() {
	job := flag.String("job", "", "Job to run: refresh | merge | recount | digest")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("[config] Loaded .env file")
	}
	cfg := config.Load()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	labeler := label.Default()
	if cfg.RulesFile != "" {
		if l, err := label.FromFile(cfg.RulesFile); err == nil {
			labeler = l
		}
	}
	jobs := reconcile.New(st, labeler)

	switch *job {
	case "refresh":
		updated, err := jobs.Refresh()
		if err != nil {
			log.Fatalf("refresh failed: %v", err)
		}
		log.Printf("refresh: relabeled %d clusters", updated)
	case "merge":
		merged, err := jobs.Merge()
		if err != nil {
			log.Fatalf("merge failed: %v", err)
		}
		log.Printf("merge: removed %d clusters", merged)
	case "recount":
		removed, err := jobs.Recount()
		if err != nil {
			log.Fatalf("recount failed: %v", err)
		}
		log.Printf("recount: removed %d empty clusters", removed)
	case "digest":
		var completer llm.Completer
		if c := llm.NewClient(cfg.AnthropicKey, cfg.AnthropicModel); c != nil {
			completer = c
		}
		synth := digest.NewSynthesizer(st, completer, cfg.Location())
		d, err := synth.Run(context.Background(), time.Now())
		if err != nil {
			log.Fatalf("digest failed: %v", err)
		}
		log.Printf("digest: generated %s for %s", d.ID, d.Date)
	default:
		log.Fatalf("unknown job %q (want refresh, merge, recount, or digest)", *job)
	}
}
