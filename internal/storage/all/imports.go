// Package all registers every built-in run ledger backend with the storage
// factory. Import it for side effects from the wiring layer:
//
//	import _ "mailcorpus/internal/storage/all"
//
// Available kinds:
//
//   - "postgres" (mailcorpus/internal/storage/postgres)
//   - "sqlite"   (mailcorpus/internal/storage/sqlite)
//   - "mysql"    (mailcorpus/internal/storage/mysql)
//   - "mssql"    (mailcorpus/internal/storage/mssql)
//
// A binary that needs fewer backends can import only those packages.
package all

import (
	_ "mailcorpus/internal/storage/mssql"
	_ "mailcorpus/internal/storage/mysql"
	_ "mailcorpus/internal/storage/postgres"
	_ "mailcorpus/internal/storage/sqlite"
)
