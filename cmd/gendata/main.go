package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"pdo/internal/acquire"
)

func main() {
	var (
		gen        = acquire.DefaultGenerator()
		start      string
		outputDir  string
		sqlitePath string
	)
	flag.Int64Var(&gen.Seed, "seed", gen.Seed, "random seed")
	flag.IntVar(&gen.Orders, "orders", gen.Orders, "number of orders to generate")
	flag.IntVar(&gen.Deliveries, "deliveries", gen.Deliveries, "number of delivery outcomes")
	flag.IntVar(&gen.Routes, "routes", gen.Routes, "number of routes")
	flag.StringVar(&start, "start", gen.Start.Format(time.DateOnly), "first order date (YYYY-MM-DD)")
	flag.StringVar(&outputDir, "output", "data", "directory for the CSV files; empty to skip")
	flag.StringVar(&sqlitePath, "sqlite", "", "also write a SQLite database at this path")
	flag.Parse()

	if err := generate(gen, start, outputDir, sqlitePath); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

func generate(gen acquire.Generator, start, outputDir, sqlitePath string) error {
	t, err := time.ParseInLocation(time.DateOnly, start, time.UTC)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	gen.Start = t
	ds := gen.Generate()
	if err := acquire.Validate(ds); err != nil {
		return fmt.Errorf("generated dataset: %w", err)
	}

	if outputDir != "" {
		if err := acquire.WriteCSV(outputDir, ds); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		log.Printf("wrote %d orders, %d deliveries, %d routes to %s",
			len(ds.Orders), len(ds.Deliveries), len(ds.Routes), outputDir)
	}
	if sqlitePath != "" {
		if err := acquire.WriteSQLite(context.Background(), sqlitePath, ds); err != nil {
			return fmt.Errorf("write sqlite: %w", err)
		}
		log.Printf("wrote dataset to sqlite %s", sqlitePath)
	}
	return nil
}
