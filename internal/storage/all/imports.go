// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package.
//
// Importing this package makes the following storage kinds available at
// runtime:
//
//   - "mssql"    (geoetl/internal/storage/mssql)     GEOGRAPHY column
//   - "postgres" (geoetl/internal/storage/postgres)  PostGIS geography
//   - "mysql"    (geoetl/internal/storage/mysql)     GEOMETRY SRID 4326
//   - "sqlite"   (geoetl/internal/storage/sqlite)    WKB BLOB
//
// Typical usage (in cmd/geoetl):
//
//	import (
//	    _ "geoetl/internal/storage/all" // enable all built-in backends
//
//	    "geoetl/internal/storage"
//	)
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind: p.Storage.Kind,
//	    DSN:  p.Storage.DB.DSN,
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
//
//	loader := storage.NewLoader(repo, storage.LoaderOptions{...}, logger)
//
// If you want a binary that supports only a subset of backends, import the
// backend packages directly instead of this package.
package all

import (
	_ "geoetl/internal/storage/mssql"
	_ "geoetl/internal/storage/mysql"
	_ "geoetl/internal/storage/postgres"
	_ "geoetl/internal/storage/sqlite"
)
