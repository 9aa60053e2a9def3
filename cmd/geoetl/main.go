// Command geoetl loads a directory of vector files (GeoJSON, Shapefile) into
// a spatial database, one geography table per file.
//
// Usage:
//
//	geoetl run --config pipeline.yaml [-v] [--metrics-backend pushgateway]
//	geoetl validate --config pipeline.yaml
//	geoetl mappings --workbook mapping.xlsx [dataset]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "geoetl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
