package config

type DocField struct {
	Name    string
	Type    string
	Comment string
}

var Doc = map[string][]DocField{
	"Node": {
		{Name: "Catalog", Type: "Catalog", Comment: ``},
		{Name: "Storage", Type: "Storage", Comment: ``},
		{Name: "Gateway", Type: "Gateway", Comment: ``},
		{Name: "Cache", Type: "Cache", Comment: ``},
	},
	"Catalog": {
		{Name: "Driver", Type: "string", Comment: `database/sql driver, postgres or sqlite3`},
		{Name: "Conn", Type: "string", Comment: `connection string; a relative sqlite3 path is resolved inside the repo`},
		{Name: "MaxOpenConns", Type: "int", Comment: `upper bound of open connections, 0 means driver default`},
	},
	"Storage": {
		{Name: "Backends", Type: "[]Backend", Comment: `the first backend is the primary, the rest receive replicas`},
		{Name: "Timeout", Type: "time.Duration", Comment: `per request timeout for remote backends`},
	},
	"Backend": {
		{Name: "Conn", Type: "string", Comment: `ipfs+http://host:port, ipfs+https://host:port, leveldb:<path>, badger:<path> or memory`},
	},
	"Gateway": {
		{Name: "Enable", Type: "bool", Comment: `Enable the http gateway`},
		{Name: "ListenAddress", Type: "string", Comment: `Binding address for the http gateway`},
		{Name: "EnableLog", Type: "bool", Comment: ``},
		{Name: "Timeout", Type: "time.Duration", Comment: `per request timeout, 0 disables it`},
	},
	"Cache": {
		{Name: "EnableCache", Type: "bool", Comment: ``},
		{Name: "Type", Type: "string", Comment: `lru or redis`},
		{Name: "CacheCapacity", Type: "int", Comment: ``},
		{Name: "ContentLimit", Type: "int", Comment: `content larger than this many bytes is never cached`},
		{Name: "RedisConn", Type: "string", Comment: ``},
		{Name: "RedisPassword", Type: "string", Comment: ``},
		{Name: "RedisPoolSize", Type: "int", Comment: ``},
	},
}
