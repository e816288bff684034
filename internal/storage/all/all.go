// Package all registers every storage backend.
package all

import (
	_ "typeprobe/internal/storage/mssql"
	_ "typeprobe/internal/storage/postgres"
	_ "typeprobe/internal/storage/sqlite"
)
